// Package server defines the wire payload types exchanged between the relay
// and its clients, reused across session and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Frame kinds used on the wire.
const (
	kindSend     = "send"
	kindTyping   = "typing"
	kindHistory  = "history"
	kindMessage  = "message"
	kindPresence = "presence"
)

// Message is an immutable chat message. It is constructed once by the hub,
// stored in the history buffer, and copied into outbound payloads. SentAt is
// unix milliseconds.
type Message struct {
	ID     string `json:"id"`
	User   string `json:"user"`
	Body   string `json:"body"`
	SentAt int64  `json:"sentAt"`
}

// ClientFrame is the envelope for every client-to-server payload. Kind is
// either "send" (Body carries the message) or "typing" (IsTyping carries the
// transition).
type ClientFrame struct {
	Kind     string `json:"kind"`
	User     string `json:"user"`
	Body     string `json:"body,omitempty"`
	IsTyping bool   `json:"isTyping,omitempty"`
}

type historyPayload struct {
	Kind     string    `json:"kind"`
	Messages []Message `json:"messages"`
}

type messagePayload struct {
	Kind    string  `json:"kind"`
	Message Message `json:"message"`
}

type presencePayload struct {
	Kind     string `json:"kind"`
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

func encodeHistory(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(historyPayload{Kind: kindHistory, Messages: messages})
}

func encodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(messagePayload{Kind: kindMessage, Message: msg})
}

func encodePresence(user string, isTyping bool) ([]byte, error) {
	return json.Marshal(presencePayload{Kind: kindPresence, User: user, IsTyping: isTyping})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
