package server

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	glspserver "github.com/tliron/glsp/server"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts clients without an Origin header (editors, tests) and
// browser pages served from the local machine.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// HandleWebSocket upgrades HTTP to WebSocket and serves LSP on the
// connection until the client goes away.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.logger.Infow("LSP WebSocket connection request", "remote", r.RemoteAddr)

	if !s.beginSession() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("Failed to upgrade WebSocket", "error", err)
		return
	}

	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	h := NewGLSPHandler(s)
	glspServer := glspserver.NewServer(h.ProtocolHandler(), Name, false)

	// Close the socket on shutdown so ServeWebSocket returns
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close() // Error ignored: connection may already be closed
		case <-stop:
		}
	}()

	s.logger.Infow("Serving LSP over WebSocket", "remote", r.RemoteAddr, "session", h.ID())

	// Blocks until the connection closes
	glspServer.ServeWebSocket(conn)

	s.logger.Infow("LSP WebSocket connection closed", "remote", r.RemoteAddr, "session", h.ID())
}
