package compose

import (
	"strings"
	"unicode/utf16"
)

// Document is an immutable view of a compose file split into lines.
type Document struct {
	text  string
	lines []string
}

// NewDocument splits text on "\n"; a trailing "\r" is not part of a line.
func NewDocument(text string) *Document {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return &Document{text: text, lines: lines}
}

// Text returns the full buffer.
func (d *Document) Text() string { return d.text }

// Line returns line n, or false when n is outside the document.
func (d *Document) Line(n int) (string, bool) {
	if n < 0 || n >= len(d.lines) {
		return "", false
	}
	return d.lines[n], true
}

// ByteOffset converts a UTF-16 column into a byte offset within line.
// Columns past the end clamp to len(line).
func ByteOffset(line string, character int) int {
	if character <= 0 {
		return 0
	}
	units := 0
	for i, r := range line {
		if units >= character {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(line)
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// WordAt returns the run of word characters ([A-Za-z0-9_]) touching byte
// offset off, the same span an editor highlights for double-click.
func WordAt(line string, off int) string {
	if off > len(line) {
		off = len(line)
	}
	start, end := off, off
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	for end < len(line) && isWordByte(line[end]) {
		end++
	}
	return line[start:end]
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
