// Package integration contains end-to-end tests that exercise the relay over
// real websocket connections: history replay on join, message echo, typing
// presence fan-out, and graceful shutdown.
package integration

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaypoint/chat-server/internal/server"
	"github.com/relaypoint/chat-server/test/testhelpers"
)

// startRelay boots a hub and HTTP server for one test. The rate limit is
// relaxed so bulk-sending tests are not throttled.
func startRelay(t *testing.T) (*server.Hub, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.RateLimit.Burst = 1000

	hub := server.NewHub(cfg)
	go hub.Run()

	testServer := httptest.NewServer(server.SetupRoutes(hub))

	t.Cleanup(func() {
		testServer.Close()
		if err := hub.Shutdown(2 * time.Second); err != nil {
			t.Logf("Hub shutdown: %v", err)
		}
	})

	return hub, testServer
}

// connectClient dials the relay and consumes the history frame delivered on
// connect, returning the connection and the replayed messages.
func connectClient(t *testing.T, testServer *httptest.Server) (*websocket.Conn, []any) {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(testhelpers.WebSocketURL(testServer.URL))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	frame := testhelpers.ExpectFrameKind(t, conn, "history")
	messages, ok := frame["messages"].([]any)
	if !ok {
		t.Fatalf("History frame carries no messages array: %v", frame)
	}
	return conn, messages
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}
