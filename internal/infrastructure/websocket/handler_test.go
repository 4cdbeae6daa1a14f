package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
)

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(string) (domain.Identity, error) {
	return domain.Identity{}, domain.ErrInvalidToken
}

func newHandlerServer(t *testing.T, options ConnectionOptions) (*httptest.Server, *Registry) {
	t.Helper()

	log := logger.NewNop()
	registry := NewRegistry(log)
	handler := NewHandler(registry, rejectAllVerifier{}, options, log)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	t.Cleanup(server.Close)
	return server, registry
}

func waitForCount(t *testing.T, registry *Registry, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for registry.ConnectionCount() != want {
		select {
		case <-deadline:
			t.Fatalf("connection count = %d, want %d", registry.ConnectionCount(), want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUnresponsivePeerIsReaped(t *testing.T) {
	options := DefaultConnectionOptions()
	options.ReadTimeout = 150 * time.Millisecond
	options.PingInterval = 50 * time.Millisecond

	server, registry := newHandlerServer(t, options)

	conn, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Swallow the server's pings so it never receives a pong, simulating a
	// half-open peer. The read loop keeps the control-frame machinery running.
	conn.SetPingHandler(func(string) error { return nil })
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	waitForCount(t, registry, 1, time.Second)

	// Without pongs the read deadline expires and the connection is
	// unregistered instead of lingering forever.
	waitForCount(t, registry, 0, 3*time.Second)
}

func TestResponsivePeerSurvivesReadTimeout(t *testing.T) {
	options := DefaultConnectionOptions()
	options.ReadTimeout = 150 * time.Millisecond
	options.PingInterval = 50 * time.Millisecond

	server, registry := newHandlerServer(t, options)

	conn, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Default ping handler answers with pongs, refreshing the read deadline.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	waitForCount(t, registry, 1, time.Second)

	time.Sleep(500 * time.Millisecond)
	if got := registry.ConnectionCount(); got != 1 {
		t.Errorf("responsive connection was dropped, count = %d", got)
	}
}
