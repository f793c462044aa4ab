package server

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/internal/util"
	"github.com/teranos/composels/logger"
	"github.com/teranos/composels/version"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"
)

// GLSPHandler implements the LSP handlers for one client connection.
// Documents are cached per connection; the completion router is shared.
type GLSPHandler struct {
	id        string
	server    *Server
	documents *documentStore
	logger    *zap.SugaredLogger
}

// NewGLSPHandler creates a handler for a new connection to s
func NewGLSPHandler(s *Server) *GLSPHandler {
	id := uuid.NewString()
	return &GLSPHandler{
		id:        id,
		server:    s,
		documents: newDocumentStore(s.cfg.MaxDocuments),
		logger:    s.logger.With("session", id),
	}
}

// ID returns the session ID used in this connection's log lines.
func (h *GLSPHandler) ID() string { return h.id }

// ProtocolHandler wires the handler methods into a glsp protocol handler.
func (h *GLSPHandler) ProtocolHandler() *protocol.Handler {
	return &protocol.Handler{
		Initialize:             h.Initialize,
		Initialized:            h.Initialized,
		Shutdown:               h.Shutdown,
		SetTrace:               h.SetTrace,
		TextDocumentDidOpen:    h.TextDocumentDidOpen,
		TextDocumentDidChange:  h.TextDocumentDidChange,
		TextDocumentDidClose:   h.TextDocumentDidClose,
		TextDocumentCompletion: h.TextDocumentCompletion,
		TextDocumentHover:      h.TextDocumentHover,
	}
}

// Initialize handles LSP initialize request
func (h *GLSPHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.logger.Infow("LSP client initializing",
		"client", params.ClientInfo,
		"capabilities", "completion, hover",
	)

	router := h.server.Router()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities := protocol.ServerCapabilities{
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: router.TriggerCharacters(),
		},
		HoverProvider: &protocol.HoverOptions{},
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: util.Ptr(true),
			Change:    &syncKind,
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: util.Ptr(version.ServerVersion()),
		},
	}, nil
}

// Initialized is called after client receives InitializeResult
func (h *GLSPHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	h.logger.Infow("LSP client initialized successfully")
	return nil
}

// Shutdown handles LSP shutdown request
func (h *GLSPHandler) Shutdown(ctx *glsp.Context) error {
	h.logger.Infow("LSP client shutting down", "open_documents", h.documents.Len())
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

// SetTrace handles $/setTrace notifications
func (h *GLSPHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	h.logger.Debugw("LSP trace level changed", "value", params.Value)
	return nil
}

// TextDocumentDidOpen handles document open notifications
func (h *GLSPHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	if err := h.documents.Open(uri, params.TextDocument.Text); err != nil {
		h.logger.Warnw("Document cache limit reached, rejecting new document",
			"uri", uri,
			"current_count", h.documents.Len(),
			"max_allowed", h.server.cfg.MaxDocuments,
		)
		return err
	}

	h.logger.Debugw("Document opened",
		"uri", uri,
		"language", params.TextDocument.LanguageID,
		"length", len(params.TextDocument.Text),
		"total_documents", h.documents.Len(),
	)
	h.traceContents(uri)
	return nil
}

// TextDocumentDidChange handles document change notifications
func (h *GLSPHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	if err := h.documents.Change(uri, params.ContentChanges); err != nil {
		h.logger.Warnw("Document change rejected", "uri", uri, "error", err)
		return err
	}

	h.logger.Debugw("Document changed",
		"uri", uri,
		"version", params.TextDocument.Version,
		"changes", len(params.ContentChanges),
	)
	h.traceContents(uri)
	return nil
}

// traceContents logs the full text of uri at -vvv.
func (h *GLSPHandler) traceContents(uri string) {
	if !logger.TraceEnabled() {
		return
	}
	if text, ok := h.documents.Get(uri); ok {
		h.logger.Debugw("Document contents", "uri", uri, "text", text)
	}
}

// TextDocumentDidClose handles document close notifications
func (h *GLSPHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	h.documents.Close(uri)

	h.logger.Debugw("Document closed", "uri", uri)
	return nil
}

// TextDocumentCompletion routes the request through the compose router.
// Failures never reach the editor: they are logged and answered with an
// empty list.
func (h *GLSPHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("Panic in completion handler",
				"panic", r,
				"uri", params.TextDocument.URI,
			)
			result = []protocol.CompletionItem{}
			err = nil
		}
	}()

	uri := string(params.TextDocument.URI)
	text, ok := h.documents.Get(uri)
	if !ok {
		h.logger.Debugw("Completion for unknown document", "uri", uri)
		return []protocol.CompletionItem{}, nil
	}

	pos := compose.Position{
		Line:      int(params.Position.Line),
		Character: int(params.Position.Character),
	}

	h.logger.Debugw("LSP completion details",
		"uri", uri,
		"line", pos.Line,
		"character", pos.Character,
	)

	// Use server's context for cancellation on shutdown
	items, err := h.server.Router().ProvideCompletions(h.server.ctx, compose.NewDocument(text), pos)
	if err != nil {
		h.logger.Warnw("Completion error", "uri", uri, "error", err)
		return []protocol.CompletionItem{}, nil
	}

	completionItems := make([]protocol.CompletionItem, len(items))
	for i, item := range items {
		completionItems[i] = toProtocolItem(item)
	}

	h.logger.Infow("LSP completion result", "count", len(completionItems))
	return completionItems, nil
}

// TextDocumentHover shows the documentation of the key under the cursor
func (h *GLSPHandler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (result *protocol.Hover, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("Panic in hover handler",
				"panic", r,
				"uri", params.TextDocument.URI,
			)
			result = nil
			err = nil
		}
	}()

	uri := string(params.TextDocument.URI)
	text, ok := h.documents.Get(uri)
	if !ok {
		return nil, nil
	}

	kh, ok := h.server.Router().Hover(compose.NewDocument(text), compose.Position{
		Line:      int(params.Position.Line),
		Character: int(params.Position.Character),
	})
	if !ok {
		return nil, nil
	}

	h.logger.Debugw("LSP hover result", "uri", uri, "key", kh.Key)

	line := protocol.UInteger(kh.Line)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("**%s**\n\n%s", kh.Key, kh.Documentation),
		},
		Range: &protocol.Range{
			Start: protocol.Position{Line: line, Character: protocol.UInteger(kh.StartCharacter)},
			End:   protocol.Position{Line: line, Character: protocol.UInteger(kh.EndCharacter)},
		},
	}, nil
}

func toProtocolItem(item compose.CompletionItem) protocol.CompletionItem {
	out := protocol.CompletionItem{
		Label:      item.Label,
		Kind:       mapCompletionKind(item.Kind),
		Detail:     util.PtrOrNil(item.Detail),
		InsertText: util.PtrOrNil(item.InsertText),
	}
	if item.Documentation != "" {
		out.Documentation = protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: item.Documentation,
		}
	}
	return out
}

// mapCompletionKind maps router item kinds to LSP CompletionItemKind
func mapCompletionKind(kind compose.Kind) *protocol.CompletionItemKind {
	var k protocol.CompletionItemKind
	switch kind {
	case compose.KindKeyword:
		k = protocol.CompletionItemKindKeyword
	case compose.KindValue:
		k = protocol.CompletionItemKindValue
	default:
		k = protocol.CompletionItemKindText
	}
	return &k
}
