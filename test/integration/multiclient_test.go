package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaypoint/chat-server/test/testhelpers"
)

// TestBroadcastReachesAllClients has five clients each send one message and
// verifies every client, sender included, observes all five in the same
// relative order.
func TestBroadcastReachesAllClients(t *testing.T) {
	_, testServer := startRelay(t)

	const numClients = 5
	clients := make([]*websocket.Conn, numClients)
	for i := range clients {
		clients[i], _ = connectClient(t, testServer)
	}

	for i, conn := range clients {
		if err := testhelpers.SendChat(conn, fmt.Sprintf("user%d", i), fmt.Sprintf("Message from client %d", i)); err != nil {
			t.Fatalf("Client %d failed to send: %v", i, err)
		}
	}

	orders := make([][]string, numClients)
	for i, conn := range clients {
		for j := 0; j < numClients; j++ {
			frame := testhelpers.ExpectFrameKind(t, conn, "message")
			msg := testhelpers.MessageField(t, frame)
			body, _ := msg["body"].(string)
			orders[i] = append(orders[i], body)
		}
	}

	seen := make(map[string]bool)
	for _, body := range orders[0] {
		seen[body] = true
	}
	for i := 0; i < numClients; i++ {
		if !seen[fmt.Sprintf("Message from client %d", i)] {
			t.Errorf("Message from client %d was not delivered", i)
		}
	}

	// Every client must observe the same total order of broadcasts.
	for i := 1; i < numClients; i++ {
		for j := range orders[0] {
			if orders[i][j] != orders[0][j] {
				t.Errorf("Client %d saw order %v, client 0 saw %v", i, orders[i], orders[0])
				break
			}
		}
	}
}

// TestLateJoinerSeesBoundedHistory floods the relay past the history limit
// and verifies a late joiner replays exactly the most recent 100 messages.
func TestLateJoinerSeesBoundedHistory(t *testing.T) {
	_, testServer := startRelay(t)

	sender, _ := connectClient(t, testServer)

	const total = 120
	for i := 1; i <= total; i++ {
		if err := testhelpers.SendChat(sender, "alice", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Failed to send message %d: %v", i, err)
		}
	}
	for i := 1; i <= total; i++ {
		testhelpers.ExpectFrameKind(t, sender, "message")
	}

	_, history := connectClient(t, testServer)
	if len(history) != 100 {
		t.Fatalf("Expected history of exactly 100 messages, got %d", len(history))
	}

	first, _ := history[0].(map[string]any)
	last, _ := history[99].(map[string]any)
	if first["body"] != "message 21" {
		t.Errorf("Expected oldest retained message to be %q, got %v", "message 21", first["body"])
	}
	if last["body"] != fmt.Sprintf("message %d", total) {
		t.Errorf("Expected newest message to be %q, got %v", fmt.Sprintf("message %d", total), last["body"])
	}
}

// TestClientsJoiningAndLeaving exercises churn: a client disconnecting must
// not disturb delivery to the remaining clients.
func TestClientsJoiningAndLeaving(t *testing.T) {
	_, testServer := startRelay(t)

	c1, _ := connectClient(t, testServer)
	c2, _ := connectClient(t, testServer)
	c3, _ := connectClient(t, testServer)

	if err := testhelpers.CloseWebSocket(c2); err != nil {
		t.Logf("Close error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := testhelpers.SendChat(c1, "alice", "after leave"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	for _, conn := range []*websocket.Conn{c1, c3} {
		msg := testhelpers.MessageField(t, testhelpers.ExpectFrameKind(t, conn, "message"))
		if msg["body"] != "after leave" {
			t.Errorf("Unexpected message after churn: %v", msg)
		}
	}
}
