package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTypingTransitions(t *testing.T) {
	tracker := NewPresenceTracker()

	assert.True(t, tracker.SetTyping("alice", true), "absent -> typing is a transition")
	assert.False(t, tracker.SetTyping("alice", true), "repeated typing signal must not report a change")
	assert.True(t, tracker.SetTyping("alice", false), "typing -> stopped is a transition")
	assert.False(t, tracker.SetTyping("alice", false), "stopped while absent is a no-op")
}

func TestSetTypingRemovesEntryOnFalse(t *testing.T) {
	tracker := NewPresenceTracker()

	tracker.SetTyping("alice", true)
	tracker.SetTyping("bob", true)
	tracker.SetTyping("alice", false)

	assert.Equal(t, []string{"bob"}, tracker.TypingUsers())
}

func TestClearIsUnconditional(t *testing.T) {
	tracker := NewPresenceTracker()

	tracker.Clear("ghost")
	assert.Empty(t, tracker.TypingUsers())

	tracker.SetTyping("alice", true)
	tracker.Clear("alice")
	assert.Empty(t, tracker.TypingUsers())

	assert.True(t, tracker.SetTyping("alice", true), "cleared user typing again is a fresh transition")
}

func TestTypingUsersSorted(t *testing.T) {
	tracker := NewPresenceTracker()

	tracker.SetTyping("carol", true)
	tracker.SetTyping("alice", true)
	tracker.SetTyping("bob", true)

	assert.Equal(t, []string{"alice", "bob", "carol"}, tracker.TypingUsers())
}
