package hand

import (
	"testing"
	"time"

	"github.com/pokerlab/trainer/internal/deck"
	"github.com/pokerlab/trainer/internal/rules"
	"github.com/stretchr/testify/require"
)

func headsUp(chips int) []*Player {
	return []*Player{
		{ID: "p0", Seat: 0, Chips: chips},
		{ID: "p1", Seat: 1, Chips: chips},
	}
}

func TestHeadsUpCheckDownToRiverAwardsPot(t *testing.T) {
	players := headsUp(200)
	h := New("hand-1", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 7)
	h.Start()

	players[0].HoleCards = deck.MustParseCards("QhJh")
	players[1].HoleCards = deck.MustParseCards("ThTs")
	h.Community = deck.MustParseCards("AsKd7h2c9s")
	h.Phase = River // skip street dealing for this check-down fixture

	// Preflop: SB (seat0) calls, BB (seat1) checks.
	_, err := h.Apply(0, rules.Action{Kind: rules.Call})
	require.NoError(t, err)
	events, err := h.Apply(1, rules.Action{Kind: rules.Check})
	require.NoError(t, err)

	foundSettlement := false
	for _, e := range events {
		if _, ok := e.(PotsAwarded); ok {
			foundSettlement = true
		}
	}
	require.True(t, foundSettlement, "river check-down from a forced River phase should settle immediately")
	require.Equal(t, 202, players[1].Chips)
	require.Equal(t, 198, players[0].Chips)
}

func TestFoldToOnePlayerSettlesWithoutShowdown(t *testing.T) {
	players := headsUp(200)
	h := New("hand-2", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 1)
	h.Start()

	events, err := h.Apply(0, rules.Action{Kind: rules.Fold})
	require.NoError(t, err)

	var ended *HandEndedNoShowdown
	for _, e := range events {
		if v, ok := e.(HandEndedNoShowdown); ok {
			ended = &v
		}
	}
	require.NotNil(t, ended)
	require.Equal(t, 1, ended.WinnerSeat)
	require.Equal(t, Settled, h.Phase)
	require.Equal(t, 200+1, players[1].Chips) // wins the small blind P0 posted
	require.Equal(t, 200-1, players[0].Chips)
}

func TestShortAllInDoesNotReopenAction(t *testing.T) {
	players := []*Player{
		{ID: "p0", Seat: 0, Chips: 200},
		{ID: "p1", Seat: 1, Chips: 30},
		{ID: "p2", Seat: 2, Chips: 30},
	}
	h := New("hand-3", players, 2, 1, 2, 0, rules.NoLimitStructure{}, 3) // dealer=2, SB=0, BB=1
	h.Start()
	// Action starts at seat 2 (first after BB).
	require.Equal(t, 2, h.ActionSeat)

	_, err := h.Apply(2, rules.Action{Kind: rules.Bet, Amount: 10})
	require.Error(t, err) // a bet is illegal once blinds opened action; P2 must call/raise/fold

	_, err = h.Apply(2, rules.Action{Kind: rules.Raise, Amount: 10})
	require.NoError(t, err)
	_, err = h.Apply(0, rules.Action{Kind: rules.Raise, Amount: 25})
	require.NoError(t, err)
	_, err = h.Apply(1, rules.Action{Kind: rules.AllIn})
	require.NoError(t, err)
	_, err = h.Apply(2, rules.Action{Kind: rules.Call})
	require.NoError(t, err)

	// Seat 2 has called all-in. Seat 0 raised to 25 before seat 1's short
	// all-in to 30; it may only call now.
	err = rules.Validate(h.Structure,
		rules.TableState{BetToMatch: h.BetToMatch, MinRaise: h.MinRaise, BigBlind: 2},
		rules.ActorState{CurrentBet: players[0].CurrentBet, Chips: players[0].Chips},
		rules.Action{Kind: rules.Raise, Amount: h.BetToMatch + h.MinRaise})
	require.NoError(t, err, "the raise would be legal in isolation under r_min")

	_, err = h.Apply(0, rules.Action{Kind: rules.Raise, Amount: h.BetToMatch + h.MinRaise})
	require.ErrorIs(t, err, rules.ErrIllegalAction, "but the hand must reject it since action is not reopened for seat 0")
}

func TestChipConservationAfterHand(t *testing.T) {
	players := headsUp(200)
	total := players[0].Chips + players[1].Chips
	h := New("hand-4", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 5)
	h.Start()
	_, _ = h.Apply(0, rules.Action{Kind: rules.Fold})

	after := players[0].Chips + players[1].Chips + sumPotLayers(h)
	require.Equal(t, total, after)
}

func sumPotLayers(h *Hand) int {
	total := 0
	for _, l := range h.Pot.BuildLayers() {
		total += l.Amount
	}
	return total
}

func TestAbortRestoresPreHandChips(t *testing.T) {
	players := headsUp(200)
	h := New("hand-5", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 9)
	h.Start()
	_, _ = h.Apply(0, rules.Action{Kind: rules.Fold})
	h.Abort()
	require.Equal(t, 200, players[0].Chips)
	require.Equal(t, 200, players[1].Chips)
}

func TestFoldToOnePlayerDoesNotLoopAfterSettlement(t *testing.T) {
	players := headsUp(200)
	h := New("hand-6", players, 0, 1, 2, 0, rules.NoLimitStructure{}, 2)
	h.Start()

	done := make(chan struct{})
	go func() {
		_, err := h.Apply(0, rules.Action{Kind: rules.Fold})
		require.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Apply did not return: settlement likely looped trying to deal past Settled")
	}
	require.Equal(t, Settled, h.Phase)
}
