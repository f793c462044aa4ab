package compose

import "regexp"

var keyLinePattern = regexp.MustCompile(`^(\s*)(\w+)\s*:`)

// KeyHover describes the schema key under the cursor.
type KeyHover struct {
	Key           string
	Documentation string
	Line          int
	// StartCharacter and EndCharacter delimit the key in UTF-16 units.
	StartCharacter int
	EndCharacter   int
}

// Hover returns the documentation of the key under the cursor when the
// cursor sits on the key of a `key:` line and the key is in the table of the
// document's schema version.
func (r *Router) Hover(doc *Document, pos Position) (*KeyHover, bool) {
	line, ok := doc.Line(pos.Line)
	if !ok {
		return nil, false
	}
	m := keyLinePattern.FindStringSubmatchIndex(line)
	if m == nil {
		return nil, false
	}

	start, end := m[4], m[5]
	off := ByteOffset(line, pos.Character)
	if off < start || off > end {
		return nil, false
	}

	key := line[start:end]
	documentation, ok := r.tables.ForVersion(DetectSchemaVersion(doc.Text())).Lookup(key)
	if !ok {
		return nil, false
	}

	startCharacter := utf16Len(line[:start])
	return &KeyHover{
		Key:            key,
		Documentation:  documentation,
		Line:           pos.Line,
		StartCharacter: startCharacter,
		EndCharacter:   startCharacter + utf16Len(key),
	}, true
}
