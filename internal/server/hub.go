// Package server coordinates session registration, message broadcast, typing
// presence, and connection cleanup via the Hub type.
package server

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type eventKind int

const (
	eventConnect eventKind = iota
	eventFrame
	eventDisconnect
)

type event struct {
	kind  eventKind
	sess  *Session
	frame ClientFrame
}

// Hub is the coordinator at the center of the relay. All session goroutines
// enqueue events into a single channel; one event-processing goroutine owns
// the history buffer, presence tracker, and session registry, so every
// session observes broadcasts in the same relative order. Fan-out happens
// through bounded per-session queues and never blocks the loop.
type Hub struct {
	cfg Config
	log zerolog.Logger

	events chan event

	registry *SessionRegistry
	history  *HistoryBuffer
	presence *PresenceTracker

	// nextID is the message sequence counter, touched only by the event loop.
	nextID int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub with empty state. The returned Hub is ready once Run
// is started in its own goroutine.
func NewHub(cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:      cfg,
		log:      log.With().Str("component", "hub").Logger(),
		events:   make(chan event),
		registry: NewSessionRegistry(),
		history:  NewHistoryBuffer(cfg.HistoryLimit),
		presence: NewPresenceTracker(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Connect hands a freshly created session to the hub. The hub registers it,
// starts its pump goroutines, and delivers the history snapshot to it alone.
func (h *Hub) Connect(sess *Session) {
	select {
	case h.events <- event{kind: eventConnect, sess: sess}:
	case <-h.ctx.Done():
		// Shutting down; refuse the connection.
		if sess != nil && sess.conn != nil {
			_ = sess.conn.Close()
		}
	}
}

// Inbound forwards a decoded client frame to the event loop.
func (h *Hub) Inbound(sess *Session, frame ClientFrame) {
	select {
	case h.events <- event{kind: eventFrame, sess: sess, frame: frame}:
	case <-h.ctx.Done():
	}
}

// Disconnect tells the hub the session's connection has terminated.
func (h *Hub) Disconnect(sess *Session) {
	select {
	case h.events <- event{kind: eventDisconnect, sess: sess}:
	case <-h.ctx.Done():
	}
}

// Run processes hub events until shutdown. It should be called in a separate
// goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSessions()
			return
		case ev := <-h.events:
			switch ev.kind {
			case eventConnect:
				h.handleConnect(ev.sess)
			case eventFrame:
				h.handleFrame(ev.sess, ev.frame)
			case eventDisconnect:
				h.handleDisconnect(ev.sess)
			}
		}
	}
}

func (h *Hub) handleConnect(sess *Session) {
	if sess == nil {
		h.log.Warn().Msg("received nil session registration; skipping")
		return
	}

	if err := h.registry.Register(sess); err != nil {
		h.log.Error().Err(err).Str("session", sess.id).Msg("rejecting connection")
		if sess.conn != nil {
			_ = sess.conn.Close()
		}
		return
	}

	if sess.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			sess.writePump()
		}()
		go func() {
			defer h.wg.Done()
			sess.readPump()
		}()
	}

	payload, err := encodeHistory(h.history.Snapshot())
	if err != nil {
		h.log.Error().Err(err).Msg("encoding history snapshot")
	} else if !sess.enqueue(payload) {
		h.dropSessions([]*Session{sess})
		return
	}

	h.log.Info().
		Str("session", sess.id).
		Str("addr", sess.addr).
		Int("sessions", h.registry.Len()).
		Msg("session connected")
}

func (h *Hub) handleFrame(sess *Session, frame ClientFrame) {
	if sess == nil || !h.registry.Contains(sess.id) {
		// Raced with a disconnect; the frame is stale.
		return
	}

	user := strings.TrimSpace(frame.User)
	if user == "" {
		user = fallbackUser(sess.id)
	}
	sess.displayUser = user

	switch frame.Kind {
	case kindSend:
		h.handleSend(user, frame.Body)
	case kindTyping:
		h.handleTyping(sess, user, frame.IsTyping)
	default:
		h.log.Debug().Str("kind", frame.Kind).Str("session", sess.id).Msg("dropping frame with unknown kind")
	}
}

// handleSend validates the body, records the message, and echoes it to every
// registered session including the sender.
func (h *Hub) handleSend(user, body string) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > h.cfg.MaxBodyLength {
		h.log.Debug().Str("user", user).Int("len", len(body)).Msg("dropping invalid message body")
		return
	}

	h.nextID++
	msg := Message{
		ID:     strconv.FormatInt(h.nextID, 10),
		User:   user,
		Body:   body,
		SentAt: time.Now().UnixMilli(),
	}
	h.history.Append(msg)
	// Sending a message is an implicit stop-typing; no presence broadcast.
	h.presence.Clear(user)

	payload, err := encodeMessage(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("encoding message payload")
		return
	}
	h.dropSessions(h.registry.Broadcast(nil, payload))
}

// handleTyping updates presence and, on an actual transition, notifies every
// session except the sender's.
func (h *Hub) handleTyping(sess *Session, user string, isTyping bool) {
	if !h.presence.SetTyping(user, isTyping) {
		return
	}

	payload, err := encodePresence(user, isTyping)
	if err != nil {
		h.log.Error().Err(err).Msg("encoding presence payload")
		return
	}
	stalled := h.registry.Broadcast(func(other *Session) bool {
		return other.id != sess.id
	}, payload)
	h.dropSessions(stalled)
}

func (h *Hub) handleDisconnect(sess *Session) {
	if sess == nil || h.registry.Unregister(sess.id) == nil {
		return
	}
	if sess.displayUser != "" {
		h.presence.Clear(sess.displayUser)
	}
	sess.closeSend()
	h.log.Info().
		Str("session", sess.id).
		Int("sessions", h.registry.Len()).
		Msg("session disconnected")
}

// dropSessions removes sessions whose outbound queue overflowed. They are
// treated as disconnected so one slow consumer never stalls the fan-out path.
func (h *Hub) dropSessions(stalled []*Session) {
	for _, sess := range stalled {
		if h.registry.Unregister(sess.id) == nil {
			continue
		}
		if sess.displayUser != "" {
			h.presence.Clear(sess.displayUser)
		}
		sess.closeSend()
		h.log.Warn().Str("session", sess.id).Msg("session dropped due to full send queue")
	}
}

// shutdownSessions closes all active session connections.
func (h *Hub) shutdownSessions() {
	sessions := h.registry.snapshot()
	for _, sess := range sessions {
		h.registry.Unregister(sess.id)
		sess.closeSend()
		if sess.conn != nil {
			if err := sess.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Debug().Err(err).Str("session", sess.id).Msg("closing session connection")
			}
		}
	}
	h.log.Info().Int("sessions", len(sessions)).Msg("closed all session connections")
}

// Shutdown stops the event loop, closes all sessions, and waits for session
// goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached; some session goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// SessionCount reports the number of currently registered sessions.
func (h *Hub) SessionCount() int {
	return h.registry.Len()
}

// TypingUsers reports the users currently marked as typing.
func (h *Hub) TypingUsers() []string {
	return h.presence.TypingUsers()
}

// fallbackUser derives a display identity from the session id when a frame
// carries no user, mirroring how anonymous clients are attributed.
func fallbackUser(id string) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return "user-" + id
}
