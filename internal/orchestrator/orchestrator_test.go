package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/protocol"
	"github.com/pokerlab/trainer/internal/rules"
)

type fakeBroadcaster struct {
	mu          sync.Mutex
	events      []interface{}
	onBroadcast func(interface{})
}

func (f *fakeBroadcaster) Broadcast(event interface{}) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	if f.onBroadcast != nil {
		f.onBroadcast(event)
	}
	return nil
}

func (f *fakeBroadcaster) snapshot() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.events))
	copy(out, f.events)
	return out
}

func headsUpHand(t *testing.T) *hand.Hand {
	t.Helper()
	players := []*hand.Player{
		{ID: "p0", Seat: 0, Chips: 200},
		{ID: "p1", Seat: 1, Chips: 200},
	}
	return hand.New("hand-orch-1", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 11)
}

func TestDriveEmitsPlayerActionUngated(t *testing.T) {
	h := headsUpHand(t)
	startEvents := h.Start()

	var o *Orchestrator
	broadcaster := &fakeBroadcaster{}
	broadcaster.onBroadcast = func(e interface{}) {
		if env, ok := envelopeOf(e); ok {
			o.Ack(env.HandID, env.EventSeq)
		}
	}
	o = New(quartz.NewReal(), broadcaster, zerolog.Nop())
	o.Drive(context.Background(), h, startEvents)

	// Blinds are not translated into wire events.
	require.Empty(t, broadcaster.snapshot())

	events, err := h.Apply(0, rules.Action{Kind: rules.Fold})
	require.NoError(t, err)
	o.Drive(context.Background(), h, events)

	var sawFold, sawRoundBetsFinalized, sawPotWinners, sawChips, sawConcluded bool
	for _, e := range broadcaster.snapshot() {
		switch v := e.(type) {
		case protocol.PlayerActionEvent:
			if v.Action == protocol.ActionFold {
				sawFold = true
			}
		case protocol.RoundBetsFinalizedEvent:
			sawRoundBetsFinalized = true
			require.NotEmpty(t, v.PlayerBets, "blinds were still uncollected when seat 0 folded")
		case protocol.PotWinnersDeterminedEvent:
			sawPotWinners = true
			require.Len(t, v.Pots, 1)
			require.Equal(t, []int{1}, v.Pots[0].WinnerSeats)
		case protocol.ChipsDistributedEvent:
			sawChips = true
		case protocol.HandVisuallyConcludedEvent:
			sawConcluded = true
		}
	}
	require.True(t, sawFold)
	require.True(t, sawRoundBetsFinalized, "fold-to-one-player with uncollected blinds must still emit round_bets_finalized")
	require.True(t, sawPotWinners)
	require.True(t, sawChips)
	require.True(t, sawConcluded)
}

func TestDriveGateResolvesOnAck(t *testing.T) {
	h := headsUpHand(t)
	h.Start()
	_, err := h.Apply(0, rules.Action{Kind: rules.Call})
	require.NoError(t, err)
	events, err := h.Apply(1, rules.Action{Kind: rules.Check})
	require.NoError(t, err)

	var o *Orchestrator
	broadcaster := &fakeBroadcaster{}
	broadcaster.onBroadcast = func(e interface{}) {
		if env, ok := envelopeOf(e); ok {
			o.Ack(env.HandID, env.EventSeq)
		}
	}
	o = New(quartz.NewReal(), broadcaster, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		o.Drive(context.Background(), h, events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drive did not return promptly after the gate was acked")
	}
}

func TestDriveGateTimesOutAndAdvances(t *testing.T) {
	h := headsUpHand(t)
	h.Start()
	_, err := h.Apply(0, rules.Action{Kind: rules.Call})
	require.NoError(t, err)
	events, err := h.Apply(1, rules.Action{Kind: rules.Check})
	require.NoError(t, err)

	mockClock := quartz.NewMock(t)
	broadcaster := &fakeBroadcaster{}
	o := New(mockClock, broadcaster, zerolog.Nop()).WithAckTimeout(3000 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		o.Drive(context.Background(), h, events)
		close(done)
	}()

	// The batch carries two gated events (round_bets_finalized, then
	// street_dealt for the flop); each needs its own timeout to elapse
	// before Drive can return.
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		mockClock.Advance(3000 * time.Millisecond).MustWait(ctx)
		cancel()
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drive did not advance past the ack gate after the timeout elapsed")
	}
}

// envelopeOf extracts the common Envelope from any gated wire event, so
// a test can ack whatever the orchestrator happens to emit without a
// type switch per call site.
func envelopeOf(e interface{}) (protocol.Envelope, bool) {
	switch v := e.(type) {
	case protocol.RoundBetsFinalizedEvent:
		return v.Envelope, true
	case protocol.StreetDealtEvent:
		return v.Envelope, true
	case protocol.ShowdownHandsRevealedEvent:
		return v.Envelope, true
	case protocol.PotWinnersDeterminedEvent:
		return v.Envelope, true
	case protocol.ChipsDistributedEvent:
		return v.Envelope, true
	default:
		return protocol.Envelope{}, false
	}
}

func TestDriveShowdownSequenceIncludesHandsRevealed(t *testing.T) {
	players := []*hand.Player{
		{ID: "p0", Seat: 0, Chips: 200},
		{ID: "p1", Seat: 1, Chips: 200},
	}
	h := hand.New("hand-orch-2", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 13)

	var o *Orchestrator
	broadcaster := &fakeBroadcaster{}
	broadcaster.onBroadcast = func(e interface{}) {
		if env, ok := envelopeOf(e); ok {
			o.Ack(env.HandID, env.EventSeq)
		}
	}
	o = New(quartz.NewReal(), broadcaster, zerolog.Nop())

	o.Drive(context.Background(), h, h.Start())

	// Check down every remaining street to reach showdown.
	for h.Phase != hand.Settled {
		seat := h.ActionSeat
		events, err := h.Apply(seat, rules.Action{Kind: rules.Check})
		if err != nil {
			events, err = h.Apply(seat, rules.Action{Kind: rules.Call})
			require.NoError(t, err)
		}
		o.Drive(context.Background(), h, events)
	}

	var sawShowdown, sawConcluded bool
	for _, e := range broadcaster.snapshot() {
		switch e.(type) {
		case protocol.ShowdownHandsRevealedEvent:
			sawShowdown = true
		case protocol.HandVisuallyConcludedEvent:
			sawConcluded = true
		}
	}
	require.True(t, sawShowdown)
	require.True(t, sawConcluded)
}
