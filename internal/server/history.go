// Package server implements the bounded message history handed to newly
// connected sessions.
package server

import "sync"

// HistoryBuffer is a bounded, ordered store of recent messages. Appends go to
// the tail; once the buffer is full the oldest entries are evicted first.
// Insertion order is arrival order at the hub, not wall-clock order.
type HistoryBuffer struct {
	mu    sync.RWMutex
	limit int
	items []Message
}

// NewHistoryBuffer creates an empty buffer holding at most limit messages.
func NewHistoryBuffer(limit int) *HistoryBuffer {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &HistoryBuffer{
		limit: limit,
		items: make([]Message, 0, limit),
	}
}

// Append inserts the message at the tail, evicting from the head until the
// buffer is back within its limit. It always succeeds.
func (h *HistoryBuffer) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, msg)
	if overflow := len(h.items) - h.limit; overflow > 0 {
		h.items = append(h.items[:0], h.items[overflow:]...)
	}
}

// Snapshot returns a copy of the current contents in insertion order. The
// copy reflects a single consistent point in time relative to concurrent
// appends and is safe for the caller to retain.
func (h *HistoryBuffer) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, len(h.items))
	copy(out, h.items)
	return out
}

// Len reports the number of messages currently buffered.
func (h *HistoryBuffer) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
