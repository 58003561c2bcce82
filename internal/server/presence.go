// Package server tracks live typing presence for connected users.
package server

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// PresenceTracker maintains the set of users currently signaling "typing".
// Absence means "not typing": entries are removed on a false signal rather
// than flagged, so the set never outgrows the users typing right now.
type PresenceTracker struct {
	mu     sync.Mutex
	typing map[string]struct{}
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{typing: make(map[string]struct{})}
}

// SetTyping records the user's typing state and reports whether the visible
// state actually transitioned. A repeated signal in the same state returns
// false, so client retransmissions never cause redundant fan-out.
func (p *PresenceTracker) SetTyping(user string, isTyping bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, present := p.typing[user]
	if isTyping == present {
		return false
	}
	if isTyping {
		p.typing[user] = struct{}{}
	} else {
		delete(p.typing, user)
	}
	return true
}

// Clear unconditionally removes the user, used on disconnect cleanup.
func (p *PresenceTracker) Clear(user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.typing, user)
}

// TypingUsers returns the users currently typing in lexical order.
func (p *PresenceTracker) TypingUsers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := lo.Keys(p.typing)
	sort.Strings(users)
	return users
}
