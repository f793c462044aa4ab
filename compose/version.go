package compose

import (
	"regexp"

	"github.com/teranos/composels/compose/keyinfo"
)

// versionPattern finds a top-level `version:` with a quoted value. The
// declaration must start the line; indented `version:` keys belong to
// something else (a build arg, a label) and do not pick the schema.
var versionPattern = regexp.MustCompile(`(?im)^version:[ \t]+['"]([^'"\r\n]*)['"]`)

// DeclaredVersion returns the raw quoted value of the first top-level
// version declaration, and whether one was found.
func DeclaredVersion(text string) (string, bool) {
	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DetectSchemaVersion scans the whole document once and returns the schema
// version it declares. Anything other than version "2" is schema v1.
func DetectSchemaVersion(text string) keyinfo.Version {
	declared, _ := DeclaredVersion(text)
	return keyinfo.Normalize(declared)
}
