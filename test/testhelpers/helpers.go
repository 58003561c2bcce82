// Package testhelpers provides common utilities for testing the RelayPoint
// chat server.
//
// It contains reusable helpers shared across integration tests: dialing
// websocket connections with a valid origin, sending protocol frames, and
// reading or rejecting server payloads with deadlines.
package testhelpers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestOrigin is the origin header value accepted by the default configuration.
const TestOrigin = "http://localhost:8080"

// WebSocketURL converts an httptest server URL into the relay's ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket creates a websocket connection to the specified URL with
// an allowed origin header set.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// ConnectWebSocketWithOrigin dials with an arbitrary origin header, used to
// exercise the origin allow-list.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendChat sends a "send" frame with the given user and body.
func SendChat(conn *websocket.Conn, user, body string) error {
	return conn.WriteJSON(map[string]any{
		"kind": "send",
		"user": user,
		"body": body,
	})
}

// SendTyping sends a "typing" frame with the given user and state.
func SendTyping(conn *websocket.Conn, user string, isTyping bool) error {
	return conn.WriteJSON(map[string]any{
		"kind":     "typing",
		"user":     user,
		"isTyping": isTyping,
	})
}

// ReadFrame reads one server payload as a generic map, failing the test if
// nothing arrives before the timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return frame
}

// ExpectFrameKind reads one payload and fails the test unless it has the
// expected kind.
func ExpectFrameKind(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()

	frame := ReadFrame(t, conn, 2*time.Second)
	if frame["kind"] != kind {
		t.Fatalf("Expected frame kind %q, got %v", kind, frame["kind"])
	}
	return frame
}

// ExpectNoFrame fails the test if any payload arrives within the wait window.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var frame map[string]any
	err := conn.ReadJSON(&frame)
	if err == nil {
		t.Fatalf("Expected no frame but received: %v", frame)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); !ok || !netErr.Timeout() {
		t.Fatalf("Expected read timeout, got: %v", err)
	}
}

// MessageField extracts the nested message object from a "message" frame.
func MessageField(t *testing.T, frame map[string]any) map[string]any {
	t.Helper()

	msg, ok := frame["message"].(map[string]any)
	if !ok {
		t.Fatalf("Frame has no message object: %v", frame)
	}
	return msg
}

// CloseWebSocket gracefully closes a websocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}
