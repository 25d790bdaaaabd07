package session

import (
	"context"

	"github.com/pokerlab/trainer/internal/protocol"
	"github.com/pokerlab/trainer/internal/rules"
)

// GameHandle is the narrow, plain-data surface a Session needs into a
// running game. internal/registry constructs one per game (it builds
// the Hub, Scheduler and Orchestrator); internal/session only depends
// on this struct, never on internal/registry itself, so the two
// packages don't import each other.
type GameHandle struct {
	GameID string
	Hub    *Hub

	// SeatFor resolves a connected player ID to its seat at the table.
	SeatFor func(playerID string) (seat int, ok bool)

	// SubmitAction forwards a player's action to the game's scheduler.
	SubmitAction func(ctx context.Context, handID string, seat int, action rules.Action) error

	// Ack records a gated-event acknowledgement against the
	// orchestrator driving this game.
	Ack func(handID string, eventSeq int)

	// Snapshot builds the game_state view for playerID, including
	// their own masked hole cards, or reports false if the game has
	// no hand in progress to snapshot.
	Snapshot func(playerID string) (protocol.GameStateEvent, bool)

	// ReconnectReplay returns the events to replay to a reconnecting
	// player beyond the game_state snapshot: the most recent gated
	// event of the hand in progress (whether or not it was already
	// acknowledged; acks are not tracked), and the outstanding
	// action_request if it is this player's turn. It returns no more
	// than that — full event history is never replayed.
	ReconnectReplay func(playerID string) []interface{}
}

// actionKindFromWire maps a client-chosen wire action to the rules
// engine's ActionKind. ActionKind.String() produces the exact same
// token set, so the mapping is the inverse of that method.
func actionKindFromWire(a protocol.ActionType) (rules.ActionKind, bool) {
	switch a {
	case protocol.ActionFold:
		return rules.Fold, true
	case protocol.ActionCheck:
		return rules.Check, true
	case protocol.ActionCall:
		return rules.Call, true
	case protocol.ActionBet:
		return rules.Bet, true
	case protocol.ActionRaise:
		return rules.Raise, true
	case protocol.ActionAllIn:
		return rules.AllIn, true
	default:
		return 0, false
	}
}
