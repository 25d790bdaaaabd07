// Package adapters defines the external collaborator ports the engine
// depends on but is indifferent to the concrete implementation of: the
// LLM decision port, the opponent memory port, and the clock port, per
// spec §4.I. It also ships reference implementations (NullMemory,
// HeuristicDecider) so a server is runnable without a real LLM wired
// in.
package adapters

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"github.com/pokerlab/trainer/internal/rules"
)

// Clock is the injected time source for turn clocks, AI timeouts, and
// ack gates. It is quartz.Clock directly: no new abstraction is needed
// since quartz already provides a real/mock pair and is used
// throughout the rest of the engine for the same purpose.
type Clock = quartz.Clock

// PlayerView is one seat's publicly-visible state in a StateView, as
// seen by the archetype being asked to decide.
type PlayerView struct {
	Seat       int
	Chips      int
	CurrentBet int
	Status     string
}

// StateView is the hole-card-masked view of a hand handed to the LLM
// decision port: the acting seat's own hole cards, the shared board,
// every seat's public chip state, and the legal options computed by
// internal/hand.LegalActions.
type StateView struct {
	HandID     string
	Seat       int
	HoleCards  []string
	Community  []string
	Pot        int
	BigBlind   int
	Options    []rules.ActionKind
	CallAmount int
	MinRaise   int
	MaxRaise   int
	Players    []PlayerView
}

// Decision is a canonical (action, amount) tuple with the reasoning
// text the LLM (or a heuristic reference decider) attached to it.
type Decision struct {
	Action    rules.ActionKind
	Amount    int
	Reasoning string
}

// LLMDecider is the LLM decision port. The engine treats it as opaque
// and may fail; the scheduler is responsible for timing it out and
// substituting a default, per spec §4.G.
type LLMDecider interface {
	Decide(ctx context.Context, archetype string, state StateView) (Decision, error)
}

// HandLog is the per-hand summary handed to the opponent memory port
// after a hand settles. Field shape mirrors internal/history's export
// schema; the memory port is free to ignore fields it doesn't use.
type HandLog struct {
	HandID    string
	Players   []string
	Showdown  bool
	Winners   []string
	Timestamp time.Time
}

// ProfileView is what a memory port returns about a player's observed
// tendencies, for the LLM decision port's context.
type ProfileView struct {
	PlayerID       string
	HandsObserved  int
	VPIP           float64
	PFR            float64
	AggressionFreq float64
}

// MemoryPort is the opponent memory port. Both methods are optional:
// failures are non-fatal and logged, per spec §4.I.
type MemoryPort interface {
	RecordHand(ctx context.Context, log HandLog) error
	Profile(ctx context.Context, playerID string) (ProfileView, error)
}
