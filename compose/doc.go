// Package compose implements completion routing for docker-compose files.
//
// A Router looks at the line under the cursor and picks one of a fixed,
// ordered set of rules:
//
//	empty line                     -> every key of the document's schema
//	cursor in the first identifier -> every key of the document's schema
//	image: "par|                   -> image suggestions for "par"
//	image: par|                    -> image suggestions for "par"
//	anything else                  -> nothing
//
// The schema version comes from the document's top-level `version:` value;
// "2" selects the v2 key table, everything else v1. Image suggestions are
// delegated to an ImageSuggester, normally the Docker Hub client in package
// registry.
package compose
