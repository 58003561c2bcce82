// Package server tracks the set of connected sessions and fans payloads out
// to their send queues.
package server

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrDuplicateSession is returned when a session id is registered twice. The
// connection layer assigns fresh ids, so this guards an invariant rather than
// a recoverable user-facing case.
var ErrDuplicateSession = errors.New("session id already registered")

// SessionRegistry holds the currently connected sessions keyed by id. The hub
// event loop is the only writer; the registry still locks internally so
// snapshots taken outside the loop stay consistent.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Register adds the session under its id.
func (r *SessionRegistry) Register(sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.id]; exists {
		return errors.Wrapf(ErrDuplicateSession, "session %s", sess.id)
	}
	r.sessions[sess.id] = sess
	return nil
}

// Unregister removes the session and returns it, or nil if the id is not
// registered. A missing id is not an error: disconnect handlers may race
// with forced cleanup.
func (r *SessionRegistry) Unregister(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return sess
}

// Contains reports whether the id is currently registered.
func (r *SessionRegistry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Len reports the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

// Broadcast enqueues the payload to every registered session matching the
// predicate; a nil predicate matches all. Sessions whose outbound queue is
// saturated are skipped and returned so the caller can drop them: a slow
// consumer never blocks delivery to the rest.
func (r *SessionRegistry) Broadcast(match func(*Session) bool, payload []byte) []*Session {
	var stalled []*Session
	for _, sess := range r.snapshot() {
		if match != nil && !match(sess) {
			continue
		}
		if !sess.enqueue(payload) {
			stalled = append(stalled, sess)
		}
	}
	return stalled
}
