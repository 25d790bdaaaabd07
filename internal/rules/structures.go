package rules

import "fmt"

// NoLimitStructure allows any bet or raise within the actor's stack,
// subject to the minimum raise increment.
type NoLimitStructure struct{}

func (NoLimitStructure) BetRange(table TableState, actor ActorState) (int, int, error) {
	min := table.BigBlind
	if min > actor.Chips {
		min = actor.Chips
	}
	return min, actor.Chips, nil
}

func (NoLimitStructure) RaiseRange(table TableState, actor ActorState) (int, int, error) {
	min := table.BetToMatch + table.MinRaise
	max := actor.CurrentBet + actor.Chips
	if min > max {
		min = max
	}
	return min, max, nil
}

// PotLimitStructure caps bets and raises at the size of the pot after
// the actor would call, per spec §4.D: "call_amount + (pot_before + call_amount)".
type PotLimitStructure struct{}

func (PotLimitStructure) BetRange(table TableState, actor ActorState) (int, int, error) {
	min := table.BigBlind
	max := table.PotBeforeBet
	if max < min {
		max = min
	}
	if max > actor.Chips {
		max = actor.Chips
	}
	if min > actor.Chips {
		min = actor.Chips
	}
	return min, max, nil
}

func (PotLimitStructure) RaiseRange(table TableState, actor ActorState) (int, int, error) {
	callAmount := table.BetToMatch - actor.CurrentBet
	potAfterCall := table.PotBeforeBet + callAmount
	maxRaiseTo := table.BetToMatch + callAmount + potAfterCall

	min := table.BetToMatch + table.MinRaise
	stackCap := actor.CurrentBet + actor.Chips
	if maxRaiseTo > stackCap {
		maxRaiseTo = stackCap
	}
	if min > maxRaiseTo {
		min = maxRaiseTo
	}
	return min, maxRaiseTo, nil
}

// FixedLimitStructure fixes bet/raise sizes per street: a small bet
// preflop and on the flop, a big bet (2x small) on the turn and river,
// with a cap of one bet plus three raises per street (spec §4.D; the
// cap applies uniformly regardless of player count, see DESIGN.md).
type FixedLimitStructure struct {
	SmallBet       int
	MaxRaisesPerStreet int // defaults to 3 if zero
}

func (f FixedLimitStructure) betSize(street Street) int {
	small := f.SmallBet
	switch street {
	case Preflop, Flop:
		return small
	default:
		return small * 2
	}
}

func (f FixedLimitStructure) maxRaises() int {
	if f.MaxRaisesPerStreet == 0 {
		return 3
	}
	return f.MaxRaisesPerStreet
}

func (f FixedLimitStructure) BetRange(table TableState, actor ActorState) (int, int, error) {
	size := f.betSize(table.Street)
	if size > actor.Chips {
		size = actor.Chips
	}
	return size, size, nil
}

func (f FixedLimitStructure) RaiseRange(table TableState, actor ActorState) (int, int, error) {
	if table.RaisesThisStreet >= f.maxRaises() {
		return 0, 0, fmt.Errorf("%w: raise cap reached for this street", ErrIllegalAction)
	}
	size := f.betSize(table.Street)
	raiseTo := table.BetToMatch + size
	stackCap := actor.CurrentBet + actor.Chips
	if raiseTo > stackCap {
		raiseTo = stackCap
	}
	return raiseTo, raiseTo, nil
}
