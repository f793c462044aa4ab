package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/config"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://localhost", true},
		{"http://127.0.0.1:8787", true},
		{"http://[::1]:8080", true},
		{"http://localhost.evil.example", false},
		{"https://example.com", false},
		{"::not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, WebSocketPath, nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkOrigin(r))
		})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Version)
	assert.Equal(t, int64(0), body.Sessions)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth_Draining(t *testing.T) {
	s := New(config.ServerConfig{}, compose.NewRouter(nil, nil), nil)
	require.NoError(t, s.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"draining"`)
}

func TestServeAndShutdown(t *testing.T) {
	s := New(config.ServerConfig{MaxDocuments: 10}, compose.NewRouter(nil, nil), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	wsURL := "ws://" + ln.Addr().String() + WebSocketPath
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, int64(0), s.Sessions(), "shutdown closes open sessions")

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestListenAndServe_BadAddress(t *testing.T) {
	s := newTestServer(t, nil, 0)
	err := s.ListenAndServe("256.0.0.1:bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestHandleWebSocket_RejectsAfterShutdown(t *testing.T) {
	s := New(config.ServerConfig{}, compose.NewRouter(nil, nil), nil)
	require.NoError(t, s.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	s.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, WebSocketPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBeginSession_ConcurrentWithShutdown(t *testing.T) {
	s := New(config.ServerConfig{}, compose.NewRouter(nil, nil), nil)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.beginSession() {
				accepted.Add(1)
				time.Sleep(time.Millisecond)
				s.wg.Done()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	wg.Wait()

	assert.False(t, s.beginSession(), "no sessions after shutdown")
	assert.LessOrEqual(t, accepted.Load(), int32(50))
}

func TestHandleWebSocket_FailedUpgradeReleasesSession(t *testing.T) {
	s := New(config.ServerConfig{}, compose.NewRouter(nil, nil), nil)

	// A plain GET cannot be upgraded
	rec := httptest.NewRecorder()
	s.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, WebSocketPath, nil))
	assert.Equal(t, int64(0), s.Sessions())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx), "shutdown does not wait on the failed upgrade")
}
