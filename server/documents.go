package server

import (
	"strings"
	"sync"

	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/errors"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// documentStore caches the text of the documents a client has open.
// One store exists per connection.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string]string // URI → document content
	max  int
}

func newDocumentStore(max int) *documentStore {
	return &documentStore{docs: make(map[string]string), max: max}
}

// Open stores text for uri. Re-opening a cached document replaces it and
// does not count against the limit.
func (s *documentStore) Open(uri, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[uri]; !exists && len(s.docs) >= s.max {
		return errors.Newf("document cache limit reached (%d documents open)", s.max)
	}
	s.docs[uri] = text
	return nil
}

// Change applies content changes in order. Whole-document changes replace
// the text; ranged changes splice it.
func (s *documentStore) Change(uri string, changes []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.docs[uri]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "document %s is not open", uri)
	}

	for i, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		case *protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		case protocol.TextDocumentContentChangeEvent:
			next, err := applyRangeChange(text, c)
			if err != nil {
				return errors.Wrapf(err, "change %d to %s", i, uri)
			}
			text = next
		case *protocol.TextDocumentContentChangeEvent:
			next, err := applyRangeChange(text, *c)
			if err != nil {
				return errors.Wrapf(err, "change %d to %s", i, uri)
			}
			text = next
		default:
			return errors.Newf("change %d to %s has unsupported type %T", i, uri, change)
		}
	}

	s.docs[uri] = text
	return nil
}

// Close forgets uri.
func (s *documentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns the cached text of uri.
func (s *documentStore) Get(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.docs[uri]
	return text, ok
}

// Len returns the number of open documents.
func (s *documentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func applyRangeChange(text string, c protocol.TextDocumentContentChangeEvent) (string, error) {
	if c.Range == nil {
		return c.Text, nil
	}
	start := offsetAt(text, c.Range.Start)
	end := offsetAt(text, c.Range.End)
	if start > end {
		return "", errors.NewInvalidRequestError("range start %d:%d is after end %d:%d",
			c.Range.Start.Line, c.Range.Start.Character,
			c.Range.End.Line, c.Range.End.Character)
	}
	return text[:start] + c.Text + text[end:], nil
}

// offsetAt converts an LSP position into a byte offset in text. Lines past
// the end map to len(text); columns past the end of a line clamp to it.
func offsetAt(text string, pos protocol.Position) int {
	lineStart := 0
	for n := uint32(0); n < pos.Line; n++ {
		i := strings.IndexByte(text[lineStart:], '\n')
		if i < 0 {
			return len(text)
		}
		lineStart += i + 1
	}

	line := text[lineStart:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")
	return lineStart + compose.ByteOffset(line, int(pos.Character))
}
