package registry

import (
	"sync"

	"github.com/pokerlab/trainer/internal/protocol"
	"github.com/pokerlab/trainer/internal/session"
)

// trackingBroadcaster wraps a game's Hub so it can serve as the
// orchestrator's Broadcaster while also remembering just enough state
// for reconnect replay: the most recent gated event (one a client
// might have missed mid-animation) and the outstanding action_request,
// if any. It deliberately does not keep full event history, per spec
// §4.H's "not the full event history" reconnection note.
type trackingBroadcaster struct {
	hub *session.Hub

	mu      sync.Mutex
	gated   interface{}
	gatedOK bool
	req     protocol.ActionRequestEvent
	reqOK   bool
}

func (b *trackingBroadcaster) Broadcast(event interface{}) error {
	switch ev := event.(type) {
	case protocol.RoundBetsFinalizedEvent, protocol.StreetDealtEvent,
		protocol.ShowdownHandsRevealedEvent, protocol.PotWinnersDeterminedEvent,
		protocol.ChipsDistributedEvent:
		b.mu.Lock()
		b.gated, b.gatedOK = ev, true
		b.mu.Unlock()

	case protocol.ActionRequestEvent:
		b.mu.Lock()
		b.req, b.reqOK = ev, true
		b.mu.Unlock()

	case protocol.HandVisuallyConcludedEvent:
		b.mu.Lock()
		b.gated, b.gatedOK = nil, false
		b.req, b.reqOK = protocol.ActionRequestEvent{}, false
		b.mu.Unlock()
	}

	return b.hub.Broadcast(event)
}

func (b *trackingBroadcaster) lastGatedEvent() (interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gated, b.gatedOK
}

func (b *trackingBroadcaster) lastActionRequest() (protocol.ActionRequestEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.req, b.reqOK
}
