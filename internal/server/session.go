// Package server manages individual sessions, handling read/write pumps,
// rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a payload to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong before the connection is considered dead.
	pongWait = 60 * time.Second
	// Ping period; must be less than pongWait.
	pingInterval = 54 * time.Second
)

// Session binds one client connection into the hub: an opaque id, the
// underlying websocket, and a bounded outbound queue drained by the write
// pump. Created on connect, destroyed on disconnect.
type Session struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	addr string

	send chan []byte

	mu     sync.Mutex
	closed bool

	// displayUser is the last user identity seen on any frame from this
	// connection, used for presence cleanup on disconnect. Only the hub
	// event loop touches it.
	displayUser string

	rateLimiter *rateLimiter
	log         zerolog.Logger
}

// NewSession creates a session for the given connection with a fresh id. The
// outbound queue size and read limit come from the hub's configuration.
func NewSession(conn *websocket.Conn, hub *Hub, addr string) *Session {
	id := uuid.NewString()
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxFrameSize)
	}
	return &Session{
		id:          id,
		conn:        conn,
		hub:         hub,
		addr:        addr,
		send:        make(chan []byte, hub.cfg.SendQueueSize),
		rateLimiter: newRateLimiter(hub.cfg.RateLimit.Burst, hub.cfg.RateLimit.RefillInterval),
		log:         hub.log.With().Str("session", id).Str("addr", addr).Logger(),
	}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string {
	return s.id
}

// enqueue offers a payload to the outbound queue without blocking. It returns
// false if the session is closed or the queue is saturated.
func (s *Session) enqueue(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend marks the session closed and closes its outbound queue, which
// stops the write pump. Idempotent; the hub loop serializes calls.
func (s *Session) closeSend() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.send)
}

// setupReadConnection configures the read deadline and pong handler.
func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Debug().Err(err).Msg("setting initial read deadline")
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			s.log.Debug().Err(err).Msg("setting read deadline in pong handler")
		}
		return nil
	})
}

// logReadError classifies a read failure so routine disconnects stay quiet
// while genuine protocol errors surface.
func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Warn().Int64("limit", s.hub.cfg.MaxFrameSize).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		s.log.Debug().Err(err).Msg("session disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		s.log.Debug().Err(err).Msg("connection closed")
	default:
		s.log.Warn().Err(err).Msg("websocket read error")
	}
}

// readPump forwards every inbound frame to the hub until the connection
// terminates, then issues the disconnect event.
func (s *Session) readPump() {
	defer func() {
		s.hub.Disconnect(s)
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Debug().Err(err).Msg("closing connection in read pump")
		}
	}()

	s.setupReadConnection()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}

		if !s.rateLimiter.allow() {
			s.log.Warn().Msg("rate limit exceeded; discarding frame")
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		s.hub.Inbound(s, frame)
	}
}

// writePump drains the outbound queue onto the connection and keeps the
// connection alive with periodic pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Debug().Err(err).Msg("closing connection in write pump")
		}
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Debug().Err(err).Msg("setting write deadline")
				return
			}
			if !ok {
				// The hub closed the queue; tell the peer we are done.
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Debug().Err(err).Msg("writing payload")
				}
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Debug().Err(err).Msg("setting write deadline for ping")
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Debug().Err(err).Msg("writing ping")
				}
				return
			}
		}
	}
}
