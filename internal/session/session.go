// Package session implements the duplex per-(game, player) message
// routing layer of spec §4.H: one Session per WebSocket connection,
// JSON framing with strict unknown-type rejection, heartbeat-based
// liveness, inbound rate limiting, and reconnection that inherits the
// player's seat. Grounded on the teacher's
// internal/server/connection.go (read/write pump split, buffered-send
// backpressure) generalized from its per-message handler dispatch to
// the closed three-message client protocol in internal/protocol.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/protocol"
	"github.com/pokerlab/trainer/internal/rules"
)

const (
	// writeWait bounds a single frame write, same role as the
	// teacher's constant of the same name.
	writeWait = 10 * time.Second

	// pingInterval and idleTimeout implement spec §4.H's heartbeat:
	// "a ping every 30s; a session with no pings or messages for 90s
	// is closed." These are the spec's own numbers, not the teacher's
	// (pongWait=60s/pingPeriod=54s) — the mechanism is kept, the
	// cadence is not.
	pingInterval = 30 * time.Second
	idleTimeout  = 90 * time.Second

	// maxMessageSize matches the teacher's inbound frame cap; nothing
	// in this protocol's messages is larger.
	maxMessageSize = 8192

	sendBufferSize = 64
)

// Conn is the subset of *websocket.Conn a Session needs, narrowed so
// tests can substitute a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session owns one player's live connection to one game.
type Session struct {
	conn     Conn
	playerID string
	gameID   string
	handle   GameHandle
	logger   zerolog.Logger
	limiter  *rateLimiter

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an already-upgraded connection. Call Start to begin the
// read/write pumps and replay the player's reconnect state.
func New(conn Conn, gameID, playerID string, handle GameHandle, logger zerolog.Logger) *Session {
	return &Session{
		conn:     conn,
		playerID: playerID,
		gameID:   gameID,
		handle:   handle,
		logger:   logger.With().Str("component", "session").Str("game_id", gameID).Str("player_id", playerID).Logger(),
		limiter:  newRateLimiter(DefaultRateLimit),
		send:     make(chan []byte, sendBufferSize),
		closed:   make(chan struct{}),
	}
}

// Start registers the session with its game's hub, replays its
// reconnect state, and begins the read/write pumps. It returns
// immediately; the pumps run until the connection closes.
func (s *Session) Start() {
	s.handle.Hub.Register(s)
	s.replay()

	go s.writePump()
	go s.readPump()
}

func (s *Session) replay() {
	if s.handle.Snapshot != nil {
		if snap, ok := s.handle.Snapshot(s.playerID); ok {
			s.sendEvent(snap)
		}
	}
	if s.handle.ReconnectReplay != nil {
		for _, ev := range s.handle.ReconnectReplay(s.playerID) {
			s.sendEvent(ev)
		}
	}
}

// enqueue delivers a pre-marshaled frame, closing the session if its
// buffer is full rather than letting a slow reader stall the game's
// fan-out, per spec §5's backpressure policy.
func (s *Session) enqueue(data []byte) {
	select {
	case s.send <- data:
	case <-s.closed:
	default:
		s.logger.Warn().Msg("session send buffer full, closing")
		s.closeWithReason("send buffer full")
	}
}

func (s *Session) sendEvent(event interface{}) {
	data, err := protocol.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal outbound event")
		return
	}
	s.enqueue(data)
}

func (s *Session) sendError(code, message string) {
	s.sendEvent(protocol.ErrorEvent{
		Envelope: protocol.Envelope{Type: protocol.TypeError, Timestamp: time.Now().Unix()},
		Code:     code,
		Message:  message,
	})
}

// Close tears down the connection and detaches the session from its
// hub. Safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	return s.closeWithReason("closed")
}

func (s *Session) closeWithReason(reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Debug().Str("reason", reason).Msg("closing session")
		close(s.closed)
		s.handle.Hub.Unregister(s)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readPump() {
	defer func() { _ = s.closeWithReason("read pump exit") }()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		// Any inbound frame, including a ping, counts as activity.
		_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		if !s.limiter.Allow() {
			s.sendEvent(protocol.ErrorEvent{
				Envelope: protocol.Envelope{Type: protocol.TypeError, Timestamp: time.Now().Unix()},
				Code:     protocol.ErrRateLimited,
				Message:  "inbound message rate exceeded",
			})
			_ = s.closeWithReason("rate_limited")
			return
		}

		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		s.sendError(protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeAction:
		s.handleAction(msg.Action)
	case protocol.TypeAnimationDone:
		s.handleAnimationDone(msg.AnimationDone)
	case protocol.TypePing:
		s.handlePing(msg.Ping)
	}
}

func (s *Session) handleAction(m *protocol.ActionMessage) {
	seat, ok := s.handle.SeatFor(s.playerID)
	if !ok {
		s.sendError(protocol.ErrGameNotFound, "player has no seat in this game")
		return
	}
	kind, ok := actionKindFromWire(m.Action)
	if !ok {
		s.sendError(protocol.ErrInvalidAction, "unrecognized action")
		return
	}
	amount := 0
	if m.Amount != nil {
		amount = *m.Amount
	}

	err := s.handle.SubmitAction(context.Background(), m.HandID, seat, rules.Action{Kind: kind, Amount: amount})
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, hand.ErrStaleAction):
		s.sendError(protocol.ErrStaleHandID, err.Error())
	case errors.Is(err, rules.ErrIllegalAction):
		s.sendError(protocol.ErrInvalidAction, err.Error())
	default:
		s.sendError(protocol.ErrInternal, err.Error())
	}
}

func (s *Session) handleAnimationDone(m *protocol.AnimationDoneMessage) {
	if s.handle.Ack != nil {
		s.handle.Ack(m.HandID, m.EventSeq)
	}
}

func (s *Session) handlePing(m *protocol.PingMessage) {
	s.sendEvent(protocol.PongEvent{
		Envelope: protocol.Envelope{Type: protocol.TypePong, Timestamp: time.Now().Unix()},
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.closed:
			return
		}
	}
}
