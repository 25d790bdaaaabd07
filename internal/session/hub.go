package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/protocol"
)

// Hub fans a single game's server events out to every connected
// session for that game. It implements orchestrator.Broadcaster, so a
// Scheduler's Orchestrator can be wired directly to it. Grounded on
// the teacher's Connection.SendMessage backpressure pattern
// (connection.go): a recipient whose buffered channel is full is
// disconnected rather than allowed to stall fan-out to everyone else.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session // playerID -> session
	logger   zerolog.Logger
}

// NewHub creates an empty Hub for one game.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

// Register attaches a session so it begins receiving broadcast
// events. A session already registered under the same player ID
// (a stale connection pre-reconnect) is closed and replaced.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	prior, existed := h.sessions[s.playerID]
	h.sessions[s.playerID] = s
	h.mu.Unlock()

	if existed && prior != s {
		prior.closeWithReason("superseded by reconnect")
	}
}

// Unregister detaches a session, if it is still the one on file for
// its player ID (a stale close arriving after a reconnect is a no-op).
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.sessions[s.playerID]; ok && current == s {
		delete(h.sessions, s.playerID)
	}
}

// Broadcast implements orchestrator.Broadcaster: every event the
// orchestrator emits is already safe for every seat (hole cards are
// never included except at Showdown, which is intentionally public),
// so fan-out needs no per-recipient filtering.
func (h *Hub) Broadcast(event interface{}) error {
	data, err := protocol.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(data)
	}
	return nil
}

// SendTo delivers a message to exactly one player's session, if
// connected — used for replaying a reconnecting player's snapshot and
// outstanding action request, which must not be fanned out to others.
func (h *Hub) SendTo(playerID string, event interface{}) error {
	data, err := protocol.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.RLock()
	s, ok := h.sessions[playerID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	s.enqueue(data)
	return nil
}

// Connected reports whether a player currently has a live session.
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[playerID]
	return ok
}
