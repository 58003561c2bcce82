package integration

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaypoint/chat-server/internal/server"
)

// TestGracefulShutdown verifies an idle hub shuts down cleanly.
func TestGracefulShutdown(t *testing.T) {
	hub := server.NewHub(server.NewConfig())
	go hub.Run()

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestGracefulShutdownWithClients verifies that active client connections are
// closed during shutdown.
func TestGracefulShutdownWithClients(t *testing.T) {
	hub, testServer := startRelay(t)

	const numClients = 3
	clients := make([]*websocket.Conn, numClients)
	for i := range clients {
		clients[i], _ = connectClient(t, testServer)
	}

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Hub shutdown failed: %v", err)
	}

	for _, conn := range clients {
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		// Drain any payloads delivered before the close; the read must
		// eventually fail once the server side is gone.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}

	if hub.SessionCount() != 0 {
		t.Errorf("Expected no registered sessions after shutdown, got %d", hub.SessionCount())
	}
}
