package compose

import (
	"context"
	"regexp"

	"github.com/samber/lo"
	"github.com/teranos/composels/compose/keyinfo"
	"github.com/teranos/composels/logger"
)

// ImageSuggester looks up image names matching a partial image reference.
// It may block on network I/O; cancellation and retries are its own concern.
type ImageSuggester interface {
	SuggestImages(ctx context.Context, partial string) ([]CompletionItem, error)
}

// Rule identifies which routing rule handled a request.
type Rule int

const (
	RuleNone Rule = iota
	RuleEmptyLine
	RuleFirstToken
	RuleQuotedImage
	RuleUnquotedImage
)

func (r Rule) String() string {
	switch r {
	case RuleEmptyLine:
		return "empty-line"
	case RuleFirstToken:
		return "first-token"
	case RuleQuotedImage:
		return "quoted-image"
	case RuleUnquotedImage:
		return "unquoted-image"
	default:
		return "none"
	}
}

// Decision is the outcome of classifying a cursor position.
type Decision struct {
	Rule    Rule
	Version keyinfo.Version
	// Word is the identifier under the cursor. Key rules only.
	Word string
	// Partial is the image reference typed so far. Image rules only.
	Partial string
}

var (
	firstTokenPattern    = regexp.MustCompile(`^\s*\w*$`)
	quotedImagePattern   = regexp.MustCompile(`^\s*image\s*:\s*"([^"]*)$`)
	unquotedImagePattern = regexp.MustCompile(`^\s*image\s*:\s*([\w:/]*)`)
)

type routingRule struct {
	rule Rule
	// match sees the whole line and the text before the cursor.
	match  func(line, before string) (capture string, ok bool)
	handle func(r *Router, ctx context.Context, d Decision) ([]CompletionItem, error)
}

// routingRules is evaluated top to bottom; the first match wins.
var routingRules = []routingRule{
	{
		rule:   RuleEmptyLine,
		match:  func(line, _ string) (string, bool) { return "", line == "" },
		handle: (*Router).handleKeys,
	},
	{
		rule:   RuleFirstToken,
		match:  func(_, before string) (string, bool) { return "", firstTokenPattern.MatchString(before) },
		handle: (*Router).handleKeys,
	},
	{
		rule:   RuleQuotedImage,
		match:  submatch(quotedImagePattern),
		handle: (*Router).handleImages,
	},
	{
		rule:   RuleUnquotedImage,
		match:  submatch(unquotedImagePattern),
		handle: (*Router).handleImages,
	},
}

func submatch(re *regexp.Regexp) func(string, string) (string, bool) {
	return func(_, before string) (string, bool) {
		m := re.FindStringSubmatch(before)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// Router decides, for one cursor position, whether to offer schema keys or
// image names, and produces the suggestions. It holds no per-request state
// and is safe for concurrent use.
type Router struct {
	tables *keyinfo.Tables
	images ImageSuggester
}

// NewRouter creates a router over the given key tables. images may be nil,
// in which case image positions yield no suggestions.
func NewRouter(tables *keyinfo.Tables, images ImageSuggester) *Router {
	if tables == nil {
		tables = keyinfo.Default()
	}
	return &Router{tables: tables, images: images}
}

// TriggerCharacters returns the characters that should re-trigger completion.
// The router relies on the editor's own triggering.
func (r *Router) TriggerCharacters() []string { return []string{} }

// ExcludeTokens returns token types inside which completion is suppressed.
func (r *Router) ExcludeTokens() []string { return []string{} }

// Route classifies pos within doc without producing any suggestions.
func (r *Router) Route(doc *Document, pos Position) Decision {
	d, _ := r.route(doc, pos)
	return d
}

func (r *Router) route(doc *Document, pos Position) (Decision, *routingRule) {
	d := Decision{Rule: RuleNone, Version: DetectSchemaVersion(doc.Text())}

	line, ok := doc.Line(pos.Line)
	if !ok {
		return d, nil
	}
	off := ByteOffset(line, pos.Character)
	before := line[:off]

	for i := range routingRules {
		rule := &routingRules[i]
		capture, ok := rule.match(line, before)
		if !ok {
			continue
		}
		d.Rule = rule.rule
		switch rule.rule {
		case RuleFirstToken:
			d.Word = WordAt(line, off)
		case RuleQuotedImage, RuleUnquotedImage:
			d.Partial = capture
		}
		return d, rule
	}
	return d, nil
}

// ProvideCompletions returns the suggestions for pos within doc.
//
// The router itself never fails: errors only come from the image suggester
// and are returned unchanged. ctx is handed to the image suggester.
func (r *Router) ProvideCompletions(ctx context.Context, doc *Document, pos Position) ([]CompletionItem, error) {
	d, rule := r.route(doc, pos)

	logger.Debugw("Compose completion routed",
		"rule", d.Rule.String(),
		"schema_version", string(d.Version),
		"line", pos.Line,
		"character", pos.Character,
	)

	if rule == nil {
		return []CompletionItem{}, nil
	}
	return rule.handle(r, ctx, d)
}

func (r *Router) handleKeys(_ context.Context, d Decision) ([]CompletionItem, error) {
	return r.SuggestKeys(d.Word, d.Version), nil
}

func (r *Router) handleImages(ctx context.Context, d Decision) ([]CompletionItem, error) {
	if r.images == nil {
		return []CompletionItem{}, nil
	}
	return r.images.SuggestImages(ctx, d.Partial)
}

// SuggestKeys returns one keyword item per key of the table for version, in
// table order. Selecting an item inserts "<key>: ".
//
// word is the identifier under the cursor. It does not filter the result;
// prefix filtering is left to the editor.
func (r *Router) SuggestKeys(word string, version keyinfo.Version) []CompletionItem {
	table := r.tables.ForVersion(version)
	return lo.Map(table.Entries(), func(e keyinfo.Entry, _ int) CompletionItem {
		return CompletionItem{
			Label:         e.Key,
			Kind:          KindKeyword,
			InsertText:    e.Key + ": ",
			Documentation: e.Documentation,
		}
	})
}
