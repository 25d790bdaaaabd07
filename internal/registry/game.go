// Package registry implements the Game Registry (spec §4.J): it
// creates, looks up, and destroys Game instances, enforces at most one
// active hand per game, and exposes the snapshot/replay surface
// internal/session needs for join and reconnect. Grounded on the
// teacher's internal/server/game_manager.go (a mutex-protected
// map[string]*GameInstance with Register/Get/Delete/List), generalized
// from a config+bot-pool pair into a live, self-driving table: each
// Game owns its Hub, Orchestrator, Scheduler, and Recorder, and deals
// its own next hand once the previous one settles.
package registry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/adapters"
	"github.com/pokerlab/trainer/internal/config"
	"github.com/pokerlab/trainer/internal/deck"
	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/history"
	"github.com/pokerlab/trainer/internal/orchestrator"
	"github.com/pokerlab/trainer/internal/pot"
	"github.com/pokerlab/trainer/internal/protocol"
	"github.com/pokerlab/trainer/internal/rules"
	"github.com/pokerlab/trainer/internal/scheduler"
	"github.com/pokerlab/trainer/internal/session"
)

// interHandDelay is how long a Game waits after one hand settles
// before dealing the next, giving clients a moment past
// hand_visually_concluded before the next game_state/action_request
// arrives.
const interHandDelay = 1500 * time.Millisecond

// Game is one live table: persistent seats, the current hand (if any),
// and the wiring (Hub, Orchestrator, Scheduler, Recorder) that drives
// it. Seat order and archetypes are fixed at creation time by its
// config.GameConfig; only chip stacks and status carry across hands.
type Game struct {
	ID     string
	cfg    config.GameConfig
	clock  quartz.Clock
	logger zerolog.Logger

	Hub   *session.Hub
	orch  *orchestrator.Orchestrator
	sched *scheduler.Scheduler
	rec   *history.Recorder
	bcast *trackingBroadcaster

	rng *rand.Rand

	mu         sync.Mutex
	players    []*hand.Player
	current    *hand.Hand
	dealerSeat int
	handsDealt int
	destroyed  bool

	idleTimer *quartz.Timer
	onIdle    func()
}

func newGame(id string, cfg config.GameConfig, decider adapters.LLMDecider, clock quartz.Clock, baseDir string, logger zerolog.Logger) (*Game, error) {
	logger = logger.With().Str("component", "game").Str("game_id", id).Logger()

	rec, err := history.New(id, baseDir, clock, logger)
	if err != nil {
		return nil, err
	}

	hub := session.NewHub(logger)
	bcast := &trackingBroadcaster{hub: hub}
	orch := orchestrator.New(clock, bcast, logger).WithAckTimeout(cfg.AckTimeout())
	sched := scheduler.New(orch, decider, clock, logger).
		WithTurnClock(cfg.TurnClock()).
		WithAITimeout(cfg.AITimeout())

	players := make([]*hand.Player, len(cfg.Seats))
	for i, seat := range cfg.Seats {
		name := seat.Name
		if name == "" {
			name = seat.Archetype
		}
		playerID := seat.PlayerID
		if playerID == "" {
			playerID = seatPlayerID(id, seat.Seat)
		}
		players[i] = &hand.Player{
			ID:        pot.PlayerID(playerID),
			Name:      name,
			IsHuman:   seat.IsHuman,
			Archetype: seat.Archetype,
			Seat:      seat.Seat,
			Chips:     cfg.StartingStack,
			Status:    hand.Active,
		}
	}

	g := &Game{
		ID:      id,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		Hub:     hub,
		orch:    orch,
		sched:   sched,
		rec:     rec,
		bcast:   bcast,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(id)))),
		players: players,
	}
	sched.WithObserver(g.observe)
	return g, nil
}

func seatPlayerID(gameID string, seat int) string {
	return fmt.Sprintf("%s/seat-%d-%s", gameID, seat, uuid.NewString()[:8])
}

// Run starts the game's scheduler consumer loop and deals the first
// hand. Call once, after construction.
func (g *Game) Run(ctx context.Context) {
	go g.sched.Run(ctx)
	g.armIdleTimeout()
	g.dealNextHand(ctx)
}

// Touch resets the idle-destroy timer; the registry calls this on
// every lookup a connecting or reconnecting session triggers, and Game
// calls it on every accepted action, per spec's "destroyed ... after
// an idle timeout" (§4's Game lifecycle note).
func (g *Game) Touch() {
	g.armIdleTimeout()
}

func (g *Game) armIdleTimeout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed || g.onIdle == nil {
		return
	}
	if g.idleTimer != nil {
		g.idleTimer.Stop()
	}
	g.idleTimer = g.clock.AfterFunc(g.cfg.IdleTimeout(), g.onIdle)
}

// observe is the scheduler's WithObserver callback: it feeds the hand
// history recorder and, once a hand's pots are awarded, schedules the
// next one. It runs on the scheduler's single consumer goroutine, so
// no extra locking is needed around h itself.
func (g *Game) observe(h *hand.Hand, events []hand.Event) {
	g.rec.Observe(h, events)
	for _, e := range events {
		if _, ok := e.(hand.PotsAwarded); ok {
			g.scheduleNextHand()
			return
		}
	}
}

func (g *Game) scheduleNextHand() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return
	}
	g.clock.AfterFunc(interHandDelay, func() {
		g.dealNextHand(context.Background())
	})
}

// dealNextHand resets every seat for a new deal, rotates the button,
// and starts it. It is a no-op once fewer than two seats have chips to
// play, per the table simply pausing rather than erroring out.
func (g *Game) dealNextHand(ctx context.Context) {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}

	active := 0
	for _, p := range g.players {
		resetForNewHand(p, g.cfg.StartingStack)
		if p.Status == hand.Active {
			active++
		}
	}
	if active < 2 {
		g.mu.Unlock()
		return
	}

	g.dealerSeat = g.nextOccupiedSeat(g.dealerSeat)
	g.handsDealt++
	handID := g.ID + "-hand-" + uuid.NewString()[:8]
	seed := g.rng.Int63()

	h := hand.New(handID, g.players, g.dealerSeat, g.cfg.SmallBlind, g.cfg.BigBlind, g.cfg.Ante, rules.NoLimitStructure{}, seed)
	g.current = h
	g.orch.ResetHand(handID)
	g.rec.OnHandStart(h, seed)
	g.mu.Unlock()

	g.sched.StartHand(ctx, h)
}

// resetForNewHand clears the per-hand fields a settled hand leaves
// dirty (current bet, total bet, hole cards, fold/all-in status) while
// preserving the chip stack carried over from the previous hand. A
// seat that busted sits out until it is topped back up to
// startingStack by an external rebuy, which this server does not
// implement.
func resetForNewHand(p *hand.Player, startingStack int) {
	p.CurrentBet = 0
	p.TotalBet = 0
	p.HoleCards = nil
	if p.Chips <= 0 {
		p.Status = hand.SittingOut
		return
	}
	if p.Status != hand.Away {
		p.Status = hand.Active
	}
}

func (g *Game) nextOccupiedSeat(from int) int {
	n := len(g.players)
	if n == 0 {
		return from
	}
	for i := 1; i <= n; i++ {
		seat := (from + i) % n
		if p := g.playerAtSeat(seat); p != nil && p.Status == hand.Active {
			return seat
		}
	}
	return from
}

func (g *Game) playerAtSeat(seat int) *hand.Player {
	for _, p := range g.players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// Destroy tears the game down: it aborts any in-flight hand and flushes
// the hand history log.
func (g *Game) Destroy() {
	g.mu.Lock()
	g.destroyed = true
	if g.idleTimer != nil {
		g.idleTimer.Stop()
	}
	g.mu.Unlock()

	g.sched.AbortHand(context.Background())
	if err := g.rec.Flush(); err != nil {
		g.logger.Error().Err(err).Msg("registry: flush on destroy failed")
	}
}

// Handle builds the session.GameHandle this game exposes to
// internal/session: the narrow surface a Session needs to submit
// actions, ack gated events, and snapshot/replay state on join or
// reconnect.
func (g *Game) Handle() session.GameHandle {
	return session.GameHandle{
		GameID:          g.ID,
		Hub:             g.Hub,
		SeatFor:         g.seatFor,
		SubmitAction:    g.submitAction,
		Ack:             g.orch.Ack,
		Snapshot:        g.snapshot,
		ReconnectReplay: g.reconnectReplay,
	}
}

func (g *Game) seatFor(playerID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.players {
		if string(p.ID) == playerID {
			return p.Seat, true
		}
	}
	return 0, false
}

func (g *Game) submitAction(ctx context.Context, handID string, seat int, action rules.Action) error {
	err := g.sched.SubmitAction(ctx, handID, seat, action)
	if err == nil {
		g.Touch()
	}
	return err
}

func (g *Game) snapshot(playerID string) (protocol.GameStateEvent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := g.current
	if h == nil {
		return protocol.GameStateEvent{}, false
	}

	players := make([]protocol.PlayerPublicView, len(h.Players))
	var eligible []string
	for i, p := range h.Players {
		players[i] = protocol.PlayerPublicView{
			Seat:       p.Seat,
			PlayerID:   string(p.ID),
			Name:       p.Name,
			Chips:      p.Chips,
			CurrentBet: p.CurrentBet,
			TotalBet:   p.TotalBet,
			Status:     statusString(p.Status),
		}
		if p.Status != hand.Folded && p.Status != hand.SittingOut && p.Status != hand.Away {
			eligible = append(eligible, string(p.ID))
		}
	}

	ev := protocol.GameStateEvent{
		Envelope: protocol.Envelope{
			Type:      protocol.TypeGameState,
			HandID:    h.HandID,
			Timestamp: g.clock.Now().Unix(),
		},
		Players:    players,
		Community:  cardStrings(h.Community),
		Pots:       []protocol.PotLayerView{{Amount: h.Pot.Total(), Eligible: eligible}},
		Round:      roundString(h.Phase),
		ActionSeat: h.ActionSeat,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
	}

	if seat, ok := g.seatForLocked(playerID); ok {
		if p := g.playerAtSeatLocked(h, seat); p != nil {
			ev.YourHoleCards = cardStrings(p.HoleCards)
		}
	}
	return ev, true
}

func (g *Game) seatForLocked(playerID string) (int, bool) {
	for _, p := range g.players {
		if string(p.ID) == playerID {
			return p.Seat, true
		}
	}
	return 0, false
}

func (g *Game) playerAtSeatLocked(h *hand.Hand, seat int) *hand.Player {
	for _, p := range h.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// reconnectReplay returns, beyond the game_state snapshot
// (session.Session sends that separately via Snapshot): the most
// recent gated event of the hand in progress, and the outstanding
// action_request if it is currently playerID's turn. Acks are not
// tracked here, so the gated event is replayed whether or not it was
// already acknowledged. It never replays the full event history.
func (g *Game) reconnectReplay(playerID string) []interface{} {
	var out []interface{}
	if gated, ok := g.bcast.lastGatedEvent(); ok {
		out = append(out, gated)
	}
	if req, ok := g.bcast.lastActionRequest(); ok {
		if seat, ok := g.seatFor(playerID); ok && seat == req.Seat {
			out = append(out, req)
		}
	}
	return out
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
		return "UNKNOWN"
	}
}

func roundString(p hand.Phase) string {
	switch p {
	case hand.Preflop:
		return "PREFLOP"
	case hand.Flop:
		return "FLOP"
	case hand.Turn:
		return "TURN"
	case hand.River:
		return "RIVER"
	case hand.Showdown:
		return "SHOWDOWN"
	case hand.Settled:
		return "SETTLED"
	default:
		return "WAITING"
	}
}
