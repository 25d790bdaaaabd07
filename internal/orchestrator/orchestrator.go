// Package orchestrator drives the canonical post-action event sequence:
// translating internal/hand's domain events into wire events, assigning
// monotonic per-hand sequence numbers, and gating on client
// acknowledgement where the event table requires it, per spec §4.F.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/deck"
	"github.com/pokerlab/trainer/internal/evaluator"
	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/pot"
	"github.com/pokerlab/trainer/internal/protocol"
	"github.com/pokerlab/trainer/internal/rules"
)

// DefaultAckTimeout is how long a gated event waits for animation_done
// before the engine logs a warning and advances as if acknowledged.
const DefaultAckTimeout = 3000 * time.Millisecond

// Broadcaster delivers a wire event to every session watching a game.
// The same event goes to every recipient (session.Hub does no
// per-recipient filtering); no event Drive emits carries hole cards
// before showdown.
type Broadcaster interface {
	Broadcast(event interface{}) error
}

type gateKey struct {
	handID   string
	eventSeq int
}

// Orchestrator sequences and gates wire events for a single game. One
// instance is owned by the game's serialization point (see
// internal/scheduler); it is not safe for concurrent Drive calls.
type Orchestrator struct {
	clock       quartz.Clock
	broadcaster Broadcaster
	logger      zerolog.Logger
	ackTimeout  time.Duration

	seq map[string]int // per-hand next event_seq

	mu      sync.Mutex
	waiters map[gateKey]chan struct{}
}

// New creates an Orchestrator. Pass quartz.NewReal() in production and
// quartz.NewMock(t) in tests for deterministic ack-gate timeouts.
func New(clock quartz.Clock, broadcaster Broadcaster, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		clock:       clock,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
		ackTimeout:  DefaultAckTimeout,
		seq:         make(map[string]int),
		waiters:     make(map[gateKey]chan struct{}),
	}
}

// WithAckTimeout overrides the default ack-gate timeout; used by tests
// to exercise the timeout path without waiting 3 seconds of wall clock.
func (o *Orchestrator) WithAckTimeout(d time.Duration) *Orchestrator {
	o.ackTimeout = d
	return o
}

// Ack resolves a pending gate for (handID, eventSeq). Idempotent: a
// late or duplicate ack (the gate already resolved, or never existed)
// is a silent no-op, per spec §4.F.
func (o *Orchestrator) Ack(handID string, eventSeq int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := gateKey{handID, eventSeq}
	if ch, ok := o.waiters[key]; ok {
		close(ch)
		delete(o.waiters, key)
	}
}

func (o *Orchestrator) nextSeq(handID string) int {
	n := o.seq[handID] + 1
	o.seq[handID] = n
	return n
}

// ResetHand clears per-hand sequencing state; call when a new hand starts.
func (o *Orchestrator) ResetHand(handID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.seq, handID)
	for key, ch := range o.waiters {
		if key.handID == handID {
			close(ch)
			delete(o.waiters, key)
		}
	}
}

func (o *Orchestrator) envelope(handID string, typ string) (protocol.Envelope, int) {
	seq := o.nextSeq(handID)
	return protocol.Envelope{Type: typ, HandID: handID, EventSeq: seq, Timestamp: o.clock.Now().Unix()}, seq
}

// emit broadcasts an ungated event; it never waits.
func (o *Orchestrator) emit(event interface{}) {
	if err := o.broadcaster.Broadcast(event); err != nil {
		o.logger.Error().Err(err).Msg("broadcast failed")
	}
}

// emitGated broadcasts a gated event and waits for its ack (or the
// hand-end context to cancel the wait, or the ack timeout to elapse).
func (o *Orchestrator) emitGated(ctx context.Context, handID string, eventSeq int, event interface{}) {
	key := gateKey{handID, eventSeq}
	done := make(chan struct{})
	o.mu.Lock()
	o.waiters[key] = done
	o.mu.Unlock()

	o.emit(event)

	timedOut := make(chan struct{})
	timer := o.clock.AfterFunc(o.ackTimeout, func() { close(timedOut) })

	select {
	case <-done:
		timer.Stop()
	case <-timedOut:
		o.mu.Lock()
		delete(o.waiters, key)
		o.mu.Unlock()
		o.logger.Warn().Str("hand_id", handID).Int("event_seq", eventSeq).
			Msg("ack gate timed out, advancing")
	case <-ctx.Done():
		timer.Stop()
		o.mu.Lock()
		delete(o.waiters, key)
		o.mu.Unlock()
	}
}

// Drive translates one batch of hand.Event values (as returned by a
// single Hand.Start/Apply/ApplyForced call) into the wire sequence and
// plays it out, gating where spec §4.F requires. h must be the same
// Hand instance the events were produced from, read for player/pot
// state needed by events the domain layer does not carry directly
// (chip stacks after award, hand categories at showdown).
func (o *Orchestrator) Drive(ctx context.Context, h *hand.Hand, events []hand.Event) {
	var showdownHands map[pot.PlayerID]evaluator.HandRank
	transitioned := false

	ensureTransition := func() {
		if transitioned {
			return
		}
		transitioned = true
		env, _ := o.envelope(h.HandID, protocol.TypeShowdownTransition)
		o.emit(protocol.ShowdownTransitionEvent{Envelope: env})
	}

	for _, e := range events {
		switch ev := e.(type) {
		case hand.BlindsPosted, hand.AntePosted:
			// Reflected in the initial game_state snapshot, not a
			// standalone wire event.

		case hand.ActionApplied:
			env, _ := o.envelope(h.HandID, protocol.TypePlayerAction)
			o.emit(protocol.PlayerActionEvent{
				Envelope:  env,
				Seat:      ev.Seat,
				Action:    actionTypeFor(ev.Kind),
				Amount:    ev.Amount,
				Forced:    ev.Forced,
				Timestamp: o.clock.Now().Unix(),
			})

		case hand.RoundFinalized:
			env, seq := o.envelope(h.HandID, protocol.TypeRoundBetsFinalized)
			o.emitGated(ctx, h.HandID, seq, protocol.RoundBetsFinalizedEvent{
				Envelope:   env,
				PlayerBets: playerBetsView(ev.PlayerBets),
				PotTotal:   ev.PotTotal,
			})

		case hand.StreetAdvanced:
			env, seq := o.envelope(h.HandID, protocol.TypeStreetDealt)
			o.emitGated(ctx, h.HandID, seq, protocol.StreetDealtEvent{
				Envelope: env,
				Street:   streetNameFor(ev.Phase),
				Cards:    cardStrings(ev.Cards),
			})

		case hand.HandEndedNoShowdown:
			ensureTransition()

		case hand.Showdown:
			ensureTransition()
			showdownHands = ev.Hands
			env, seq := o.envelope(h.HandID, protocol.TypeShowdownHandsRevealed)
			o.emitGated(ctx, h.HandID, seq, protocol.ShowdownHandsRevealedEvent{
				Envelope:    env,
				PlayerHands: playerHandViews(h, ev.Hands),
			})

		case hand.PotsAwarded:
			ensureTransition()
			env, seq := o.envelope(h.HandID, protocol.TypePotWinnersDetermined)
			o.emitGated(ctx, h.HandID, seq, protocol.PotWinnersDeterminedEvent{
				Envelope: env,
				Pots:     potWinnerViews(h, ev, showdownHands),
			})

			env2, seq2 := o.envelope(h.HandID, protocol.TypeChipsDistributed)
			o.emitGated(ctx, h.HandID, seq2, protocol.ChipsDistributedEvent{
				Envelope: env2,
				Players:  chipsView(h),
			})

			env3, _ := o.envelope(h.HandID, protocol.TypeHandVisuallyConcluded)
			o.emit(protocol.HandVisuallyConcludedEvent{Envelope: env3})
		}
	}
}

// EmitActionRequest broadcasts an action_request for the next human
// actor, per spec §4.F step 5. It shares the hand's event_seq sequence
// with Drive but never gates: the turn clock that bounds the wait for
// a response belongs to internal/scheduler, not the orchestrator.
func (o *Orchestrator) EmitActionRequest(handID string, seat int, options []rules.ActionKind, callAmount, minRaise, maxRaise int, timeLimit time.Duration) {
	opts := make([]string, len(options))
	for i, k := range options {
		opts[i] = string(actionTypeFor(k))
	}
	env, _ := o.envelope(handID, protocol.TypeActionRequest)
	o.emit(protocol.ActionRequestEvent{
		Envelope:   env,
		Seat:       seat,
		Options:    opts,
		CallAmount: callAmount,
		MinRaise:   minRaise,
		MaxRaise:   maxRaise,
		TimeLimit:  int(timeLimit.Milliseconds()),
	})
}

func actionTypeFor(k rules.ActionKind) protocol.ActionType {
	switch k {
	case rules.Fold:
		return protocol.ActionFold
	case rules.Check:
		return protocol.ActionCheck
	case rules.Call:
		return protocol.ActionCall
	case rules.Bet:
		return protocol.ActionBet
	case rules.Raise:
		return protocol.ActionRaise
	default:
		return protocol.ActionAllIn
	}
}

func streetNameFor(p hand.Phase) string {
	switch p {
	case hand.Flop:
		return protocol.StreetFlop
	case hand.Turn:
		return protocol.StreetTurn
	default:
		return protocol.StreetRiver
	}
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func playerBetsView(bets map[pot.PlayerID]int) map[string]int {
	out := make(map[string]int, len(bets))
	for k, v := range bets {
		out[string(k)] = v
	}
	return out
}

func playerHandViews(h *hand.Hand, ranks map[pot.PlayerID]evaluator.HandRank) []protocol.PlayerHandView {
	var views []protocol.PlayerHandView
	for _, p := range h.Players {
		rank, ok := ranks[p.ID]
		if !ok {
			continue
		}
		seven := append(append([]deck.Card{}, p.HoleCards...), h.Community...)
		views = append(views, protocol.PlayerHandView{
			Seat:      p.Seat,
			PlayerID:  string(p.ID),
			HoleCards: cardStrings(p.HoleCards),
			BestFive:  cardStrings(evaluator.BestFive(seven)),
			HandRank:  rank.String(),
		})
	}
	return views
}

func potWinnerViews(h *hand.Hand, awarded hand.PotsAwarded, ranks map[pot.PlayerID]evaluator.HandRank) []protocol.PotWinnerView {
	views := make([]protocol.PotWinnerView, 0, len(awarded.Layers))
	for i, layer := range awarded.Layers {
		var seats []int
		var category string
		for _, winnerID := range awarded.Winners[i] {
			if seat, ok := seatFor(h, winnerID); ok {
				seats = append(seats, seat)
			}
			if rank, ok := ranks[winnerID]; ok {
				category = rank.String()
			}
		}
		views = append(views, protocol.PotWinnerView{
			Amount:      layer.Amount,
			WinnerSeats: seats,
			HandRank:    category,
		})
	}
	return views
}

func seatFor(h *hand.Hand, id pot.PlayerID) (int, bool) {
	for _, p := range h.Players {
		if p.ID == id {
			return p.Seat, true
		}
	}
	return 0, false
}

func chipsView(h *hand.Hand) []protocol.PlayerChipsView {
	views := make([]protocol.PlayerChipsView, len(h.Players))
	for i, p := range h.Players {
		views[i] = protocol.PlayerChipsView{PlayerID: string(p.ID), Chips: p.Chips}
	}
	return views
}
