// Package server exposes the compose completion router as a language server
// over stdio or WebSocket.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/config"
	"github.com/teranos/composels/errors"
	glspserver "github.com/tliron/glsp/server"
	"go.uber.org/zap"
)

// Name is reported to clients in the initialize result
const Name = "composels"

// WebSocketPath is the HTTP path that serves LSP over WebSocket
const WebSocketPath = "/lsp"

// Server owns the completion router shared by all connections and the
// transports that serve it.
type Server struct {
	cfg    config.ServerConfig
	logger *zap.SugaredLogger
	router atomic.Pointer[compose.Router]

	sessions atomic.Int64 // open WebSocket connections

	// Lifecycle management
	ctx    context.Context    // Cancelled on Shutdown; handed to image lookups
	cancel context.CancelFunc
	wg     sync.WaitGroup // Tracks WebSocket connections

	mu         sync.Mutex // Guards httpServer and orders wg.Add before Shutdown's wg.Wait
	httpServer *http.Server
}

// New creates a server. log may be nil.
func New(cfg config.ServerConfig, router *compose.Router, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
	s.router.Store(router)
	return s
}

// Router returns the router used for new requests.
func (s *Server) Router() *compose.Router { return s.router.Load() }

// SetRouter swaps the router, e.g. after a configuration reload. Requests
// already in flight finish on the old router.
func (s *Server) SetRouter(r *compose.Router) {
	s.router.Store(r)
	s.logger.Infow("Completion router replaced")
}

// beginSession registers a connection with the shutdown wait group. It
// returns false once Shutdown has started; callers that get true must call
// s.wg.Done.
func (s *Server) beginSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// Sessions returns the number of open WebSocket connections.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

// ServeStdio serves a single client on stdin/stdout until it exits.
func (s *Server) ServeStdio() error {
	h := NewGLSPHandler(s)
	s.logger.Infow("Serving LSP over stdio", "session", h.ID())

	srv := glspserver.NewServer(h.ProtocolHandler(), Name, false)
	if err := srv.RunStdio(); err != nil {
		return errors.Wrap(err, "stdio transport failed")
	}
	return nil
}

// Handler returns the HTTP routes: the WebSocket endpoint and a health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.HandleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves LSP over WebSocket on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ln)
}

// Serve serves LSP over WebSocket on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Infow("LSP WebSocket server listening",
		"addr", ln.Addr().String(),
		"path", WebSocketPath,
	)

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "websocket transport failed")
	}
	return nil
}

// Shutdown stops accepting connections, cancels in-flight lookups and waits
// for open connections to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Initiating server shutdown", "sessions", s.Sessions())

	s.mu.Lock()
	s.cancel()
	httpServer := s.httpServer
	s.mu.Unlock()

	var err error
	if httpServer != nil {
		// Hijacked WebSocket connections are not tracked by http.Server
		err = httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnw("Shutdown deadline reached with open sessions", "sessions", s.Sessions())
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
