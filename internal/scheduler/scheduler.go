// Package scheduler implements the turn scheduler: after every hand
// mutation it asks "whose turn is it?" and either emits an
// action_request with a turn clock (human) or dispatches an LLM
// decision task with a bounded timeout (AI), per spec §4.G. It is
// grounded on the teacher's internal/server/hand_runner.go
// waitForAction/listenForAction pair: a timer racing an action channel,
// with a forced default on expiry.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/adapters"
	"github.com/pokerlab/trainer/internal/deck"
	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/orchestrator"
	"github.com/pokerlab/trainer/internal/rules"
)

// DefaultTurnClock bounds a human actor's response to an action_request.
const DefaultTurnClock = 30 * time.Second

// DefaultAITimeout bounds the scheduler's wait for an LLM decision, per spec §4.G.
const DefaultAITimeout = 15 * time.Second

type intentKind int

const (
	intentHumanAction intentKind = iota
	intentAIDecision
	intentTurnTimeout
)

type intent struct {
	kind   intentKind
	handID string
	seat   int
	action rules.Action
	dec    adapters.Decision
	aiErr  error
	result chan error // non-nil only for intentHumanAction
}

// Scheduler drives one game's turn order. All state-mutating work runs
// on its single consumer goroutine (Run), matching the per-game
// logical serialization point from spec §5: inbound actions, AI
// decision completions, and timer fires all funnel through the same
// intent channel.
type Scheduler struct {
	orch      *orchestrator.Orchestrator
	decider   adapters.LLMDecider
	clock     adapters.Clock
	logger    zerolog.Logger
	turnClock time.Duration
	aiTimeout time.Duration
	observer  func(h *hand.Hand, events []hand.Event)

	intents chan intent

	mu              sync.Mutex
	h               *hand.Hand
	outstandingSeat int
	hasOutstanding  bool
	turnCancel      context.CancelFunc
	turnTimer       *quartz.Timer
}

// New creates a Scheduler. Pass quartz.NewReal() in production and
// quartz.NewMock(t) in tests for deterministic turn-clock/AI-timeout tests.
func New(orch *orchestrator.Orchestrator, decider adapters.LLMDecider, clock adapters.Clock, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		orch:      orch,
		decider:   decider,
		clock:     clock,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		turnClock: DefaultTurnClock,
		aiTimeout: DefaultAITimeout,
		intents:   make(chan intent, 8),
	}
}

func (s *Scheduler) WithTurnClock(d time.Duration) *Scheduler { s.turnClock = d; return s }
func (s *Scheduler) WithAITimeout(d time.Duration) *Scheduler { s.aiTimeout = d; return s }

// WithObserver registers a callback invoked with every batch of
// events a hand produces (Start included), alongside the orchestrator
// drive. The hand history recorder hangs off this hook rather than
// being built into the scheduler, keeping the turn-ordering logic
// free of recording concerns.
func (s *Scheduler) WithObserver(fn func(h *hand.Hand, events []hand.Event)) *Scheduler {
	s.observer = fn
	return s
}

func (s *Scheduler) notify(h *hand.Hand, events []hand.Event) {
	if s.observer != nil {
		s.observer(h, events)
	}
}

// StartHand begins driving h: it emits the Start events and dispatches
// the first actor. Any wait still outstanding for a previous hand is
// canceled first.
func (s *Scheduler) StartHand(ctx context.Context, h *hand.Hand) {
	s.mu.Lock()
	s.cancelOutstandingLocked()
	s.h = h
	s.mu.Unlock()

	events := h.Start()
	s.orch.Drive(ctx, h, events)
	s.notify(h, events)
	s.scheduleNext(ctx)
}

// AbortHand ends the current hand outside the normal action flow (a
// disconnect, a game shutdown) and cancels any in-flight AI decision
// or turn-clock timer so a late result is discarded rather than
// applied to a settled hand, per spec §5's cancellation guarantee.
func (s *Scheduler) AbortHand(ctx context.Context) {
	s.mu.Lock()
	h := s.h
	s.cancelOutstandingLocked()
	s.mu.Unlock()

	if h == nil {
		return
	}
	h.Abort()
}

// cancelOutstandingLocked cancels the in-flight AI task or turn-clock
// timer, if any. Caller holds s.mu.
func (s *Scheduler) cancelOutstandingLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	s.hasOutstanding = false
}

// SubmitAction validates a human action against the outstanding
// action_request for (handID, seat) and, if it matches, queues it for
// processing on the consumer goroutine, blocking until it has been
// applied or rejected. A mismatch (wrong hand, wrong seat, no
// outstanding request) is rejected synchronously without touching the
// queue, per spec §4.G's "reject stale input".
func (s *Scheduler) SubmitAction(ctx context.Context, handID string, seat int, action rules.Action) error {
	s.mu.Lock()
	if s.h == nil || s.h.HandID != handID || !s.hasOutstanding || s.outstandingSeat != seat {
		s.mu.Unlock()
		return hand.ErrStaleAction
	}
	s.mu.Unlock()

	result := make(chan error, 1)
	in := intent{kind: intentHumanAction, handID: handID, seat: seat, action: action, result: result}
	select {
	case s.intents <- in:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the intent channel, processing exactly one state
// mutation at a time, until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case in := <-s.intents:
			s.process(ctx, in)
		case <-ctx.Done():
			return
		}
	}
}

// process applies one queued intent, re-validating it against current
// state first: an intent queued behind another may now target a seat
// whose turn already passed, per spec §4.G's re-validate-after-dequeue
// ordering guarantee.
func (s *Scheduler) process(ctx context.Context, in intent) {
	s.mu.Lock()
	stale := s.h == nil || s.h.HandID != in.handID || !s.hasOutstanding || s.outstandingSeat != in.seat
	h := s.h
	s.mu.Unlock()

	if stale {
		if in.result != nil {
			in.result <- hand.ErrStaleAction
		}
		return
	}

	switch in.kind {
	case intentHumanAction:
		events, err := h.Apply(in.seat, in.action)
		if err != nil {
			in.result <- err
			return
		}
		in.result <- nil
		s.advance(ctx, in.seat, events)

	case intentAIDecision:
		events, err := s.resolveAIDecision(h, in)
		if err != nil {
			s.logger.Error().Err(err).Int("seat", in.seat).Msg("scheduler: forced action rejected unexpectedly")
			return
		}
		s.advance(ctx, in.seat, events)

	case intentTurnTimeout:
		s.logger.Warn().Str("hand_id", in.handID).Int("seat", in.seat).Msg("turn clock expired, forcing default action")
		events, err := h.ApplyForced(in.seat)
		if err != nil {
			s.logger.Error().Err(err).Int("seat", in.seat).Msg("scheduler: forced action rejected unexpectedly")
			return
		}
		s.advance(ctx, in.seat, events)
	}
}

// resolveAIDecision applies the AI's proposed action, substituting the
// forced default (Check if legal, else Fold) on any failure: a
// decider error, or an action that turns out illegal once applied,
// per spec §4.G.
func (s *Scheduler) resolveAIDecision(h *hand.Hand, in intent) ([]hand.Event, error) {
	if in.aiErr != nil {
		s.logger.Warn().Err(in.aiErr).Str("hand_id", in.handID).Int("seat", in.seat).
			Msg("AI decision failed, substituting default action")
		return h.ApplyForced(in.seat)
	}
	action := rules.Action{Kind: in.dec.Action, Amount: in.dec.Amount}
	events, err := h.Apply(in.seat, action)
	if err != nil {
		s.logger.Warn().Err(err).Str("hand_id", in.handID).Int("seat", in.seat).Str("action", in.dec.Action.String()).
			Msg("AI proposed an illegal action, substituting default action")
		return h.ApplyForced(in.seat)
	}
	return events, nil
}

// advance drives the orchestrator with the events an action produced
// and dispatches the next actor. It runs on the consumer goroutine.
func (s *Scheduler) advance(ctx context.Context, seat int, events []hand.Event) {
	s.mu.Lock()
	if s.outstandingSeat == seat {
		s.hasOutstanding = false
	}
	h := s.h
	s.mu.Unlock()

	s.orch.Drive(ctx, h, events)
	s.notify(h, events)
	s.scheduleNext(ctx)
}

func (s *Scheduler) scheduleNext(ctx context.Context) {
	s.mu.Lock()
	h := s.h
	if h.Phase == hand.Settled {
		s.cancelOutstandingLocked()
		s.mu.Unlock()
		return
	}
	seat := h.ActionSeat
	s.mu.Unlock()
	s.scheduleSeat(ctx, seat)
}

// scheduleSeat emits an action_request and starts a turn clock for a
// human actor, or dispatches an asynchronous AI decision task bounded
// by the AI timeout, per spec §4.G's two paths. Chained AI turns
// re-enter this directly from advance with no yield to outside code,
// matching the spec's "chained AI" note.
func (s *Scheduler) scheduleSeat(ctx context.Context, seat int) {
	s.mu.Lock()
	h := s.h
	s.cancelOutstandingLocked()
	player := playerAtSeat(h, seat)
	if player == nil {
		s.mu.Unlock()
		return
	}
	turnCtx, cancel := context.WithCancel(ctx)
	s.turnCancel = cancel
	s.outstandingSeat = seat
	s.hasOutstanding = true
	handID := h.HandID
	options, callAmount, minRaise, maxRaise := h.LegalActions(seat)
	state := stateViewFor(h, player, options, callAmount, minRaise, maxRaise)
	s.mu.Unlock()

	if player.IsHuman {
		s.orch.EmitActionRequest(handID, seat, options, callAmount, minRaise, maxRaise, s.turnClock)
		s.mu.Lock()
		s.turnTimer = s.clock.AfterFunc(s.turnClock, func() {
			select {
			case s.intents <- intent{kind: intentTurnTimeout, handID: handID, seat: seat}:
			case <-turnCtx.Done():
			}
		})
		s.mu.Unlock()
		return
	}

	go s.runAIDecision(turnCtx, handID, seat, player.Archetype, state)
}

func (s *Scheduler) runAIDecision(ctx context.Context, handID string, seat int, archetype string, state adapters.StateView) {
	decCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	dec, err := s.decider.Decide(decCtx, archetype, state)

	select {
	case s.intents <- intent{kind: intentAIDecision, handID: handID, seat: seat, dec: dec, aiErr: err}:
	case <-ctx.Done():
		// The hand ended, or a new turn started, before the decision
		// landed; discard it, per spec §4.G/§5 cancellation semantics.
	}
}

func playerAtSeat(h *hand.Hand, seat int) *hand.Player {
	for _, p := range h.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

func stateViewFor(h *hand.Hand, actor *hand.Player, options []rules.ActionKind, callAmount, minRaise, maxRaise int) adapters.StateView {
	players := make([]adapters.PlayerView, len(h.Players))
	for i, p := range h.Players {
		players[i] = adapters.PlayerView{Seat: p.Seat, Chips: p.Chips, CurrentBet: p.CurrentBet, Status: statusString(p.Status)}
	}
	return adapters.StateView{
		HandID:     h.HandID,
		Seat:       actor.Seat,
		HoleCards:  cardStrings(actor.HoleCards),
		Community:  cardStrings(h.Community),
		Pot:        h.Pot.Total(),
		BigBlind:   h.BigBlind,
		Options:    options,
		CallAmount: callAmount,
		MinRaise:   minRaise,
		MaxRaise:   maxRaise,
		Players:    players,
	}
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func statusString(s hand.Status) string {
	switch s {
	case hand.Active:
		return "ACTIVE"
	case hand.Folded:
		return "FOLDED"
	case hand.AllIn:
		return "ALL_IN"
	case hand.SittingOut:
		return "SITTING_OUT"
	case hand.Away:
		return "AWAY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}
