// Package hand implements the per-hand state machine: phases, the
// action pointer, blinds/antes, and the choreography that drives a
// hand from Preflop to Settled, per spec §4.E. It is built on
// internal/deck, internal/evaluator, internal/pot, and internal/rules.
package hand

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pokerlab/trainer/internal/deck"
	"github.com/pokerlab/trainer/internal/evaluator"
	"github.com/pokerlab/trainer/internal/pot"
	"github.com/pokerlab/trainer/internal/rules"
)

// Phase is a stage in the hand lifecycle.
type Phase int

const (
	Waiting Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
	Settled
)

func (p Phase) String() string {
	return [...]string{"Waiting", "Preflop", "Flop", "Turn", "River", "Showdown", "Settled"}[p]
}

// Status is a player's standing within the current hand.
type Status int

const (
	Active Status = iota
	Folded
	AllIn
	SittingOut
	Away
)

// ErrHandNotActive is returned when an action is applied to a hand
// whose phase cannot accept actions.
var ErrHandNotActive = errors.New("hand: not active")

// ErrStaleAction is returned when an action references the wrong seat
// or hand, per spec §7's stale_hand_id / not_your_turn handling.
var ErrStaleAction = errors.New("hand: stale or out-of-turn action")

// Player is one seat's state for the duration of a hand.
type Player struct {
	ID         pot.PlayerID
	Name       string
	IsHuman    bool
	Archetype  string
	Seat       int
	Chips      int
	CurrentBet int
	TotalBet   int
	HoleCards  []deck.Card
	Status     Status
}

// Hand is a single, self-contained deal: one per-game state machine
// instance, owned exclusively by its Game for its duration.
type Hand struct {
	HandID     string
	Phase      Phase
	DealerSeat int
	SBSeat     int
	BBSeat     int
	Community  []deck.Card
	ActionSeat int
	BetToMatch int
	MinRaise   int

	BigBlind   int
	SmallBlind int
	Ante       int

	RaisesThisStreet int

	// pending holds seats that still owe a decision this street; the
	// round is complete once it empties. blockedRaisers holds seats
	// that already matched the bet before a short all-in raised it
	// further; they may call or fold but may not raise, per spec §4.D.
	pending        map[int]bool
	blockedRaisers map[int]bool

	Structure rules.Structure
	Deck      *deck.Deck
	Pot       *pot.Manager
	Players   []*Player // seat order

	preHandChips map[pot.PlayerID]int // snapshot for abort rollback
}

// New creates a hand in the Waiting phase. Call Start to deal and post blinds.
func New(handID string, players []*Player, dealerSeat, sb, bb, ante int, structure rules.Structure, seed int64) *Hand {
	h := &Hand{
		HandID:     handID,
		Phase:      Waiting,
		DealerSeat: dealerSeat,
		SmallBlind: sb,
		BigBlind:   bb,
		Ante:       ante,
		Structure:  structure,
		Deck:       deck.NewShuffled(seed),
		Pot:        pot.NewManager(),
		Players:    players,
	}
	h.SBSeat = h.nextSeatClockwise(dealerSeat)
	if h.nonFoldedCount() == 2 {
		// Heads-up, the dealer posts the small blind and acts first preflop.
		h.SBSeat = dealerSeat
	}
	h.BBSeat = h.nextSeatClockwise(h.SBSeat)
	h.snapshotChips()
	return h
}

func (h *Hand) snapshotChips() {
	h.preHandChips = make(map[pot.PlayerID]int, len(h.Players))
	for _, p := range h.Players {
		h.preHandChips[p.ID] = p.Chips
	}
}

func (h *Hand) playerAt(seat int) *Player {
	for _, p := range h.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

func (h *Hand) nonFoldedCount() int {
	n := 0
	for _, p := range h.Players {
		if p.Status != Folded && p.Status != SittingOut && p.Status != Away {
			n++
		}
	}
	return n
}

func (h *Hand) activeActingCount() int {
	n := 0
	for _, p := range h.Players {
		if p.Status == Active {
			n++
		}
	}
	return n
}

// Event is one domain-level effect of applying an action or advancing
// the hand; the orchestrator translates these into wire events with
// sequence numbers and ack gates.
type Event interface{ isHandEvent() }

type BlindsPosted struct{ Seat, Amount int }
type AntePosted struct{ Seat, Amount int }
type ActionApplied struct {
	Seat   int
	Kind   rules.ActionKind
	Amount int
	Forced bool
}
type RoundFinalized struct {
	PlayerBets map[pot.PlayerID]int
	PotTotal   int
}
type StreetAdvanced struct {
	Phase Phase
	Cards []deck.Card
}
type HandEndedNoShowdown struct{ WinnerSeat int }
type Showdown struct {
	Hands map[pot.PlayerID]evaluator.HandRank
}
type PotsAwarded struct {
	Layers  []pot.Layer
	Winners [][]pot.PlayerID // per-layer winner list, parallel to Layers
	Payouts map[pot.PlayerID]int
}

func (BlindsPosted) isHandEvent()        {}
func (AntePosted) isHandEvent()          {}
func (ActionApplied) isHandEvent()       {}
func (RoundFinalized) isHandEvent()      {}
func (StreetAdvanced) isHandEvent()      {}
func (HandEndedNoShowdown) isHandEvent() {}
func (Showdown) isHandEvent()            {}
func (PotsAwarded) isHandEvent()         {}

// Start deals hole cards, collects antes and blinds, and opens action
// at the first actor preflop (seat BB+1, per spec §4.E).
func (h *Hand) Start() []Event {
	var events []Event
	h.Phase = Preflop

	if h.Ante > 0 {
		for _, p := range h.Players {
			if p.Status == SittingOut || p.Status == Away {
				continue
			}
			amount := h.Ante
			if amount > p.Chips {
				amount = p.Chips
			}
			p.Chips -= amount
			h.Pot.AddBet(p.ID, amount)
			events = append(events, AntePosted{Seat: p.Seat, Amount: amount})
		}
	}

	sb := h.playerAt(h.SBSeat)
	bb := h.playerAt(h.BBSeat)
	h.postBlind(sb, h.SmallBlind, &events)
	h.postBlind(bb, h.BigBlind, &events)

	h.BetToMatch = h.BigBlind
	h.MinRaise = h.BigBlind
	h.ActionSeat = h.nextSeatClockwise(h.BBSeat)
	h.startStreetPending()

	return events
}

func (h *Hand) postBlind(p *Player, amount int, events *[]Event) {
	if p == nil {
		return
	}
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	h.Pot.AddBet(p.ID, amount)
	*events = append(*events, BlindsPosted{Seat: p.Seat, Amount: amount})
	h.checkAllIn(p)
}

func (h *Hand) checkAllIn(p *Player) {
	if p.Chips == 0 && p.Status == Active {
		p.Status = AllIn
	}
}

func (h *Hand) nextSeatClockwise(from int) int {
	n := len(h.Players)
	if n == 0 {
		return from
	}
	for i := 1; i <= n; i++ {
		seat := (from + i) % n
		if p := h.playerAt(seat); p != nil && p.Status != SittingOut && p.Status != Away {
			return seat
		}
	}
	return from
}

// startStreetPending resets the set of seats that owe a decision this
// street to every seat still able to act voluntarily.
func (h *Hand) startStreetPending() {
	h.pending = make(map[int]bool)
	h.blockedRaisers = make(map[int]bool)
	for _, p := range h.Players {
		if p.Status == Active {
			h.pending[p.Seat] = true
		}
	}
}

// Apply validates and applies a single player action. Seat must match
// the current action pointer.
func (h *Hand) Apply(seat int, action rules.Action) ([]Event, error) {
	if h.Phase == Waiting || h.Phase == Settled {
		return nil, ErrHandNotActive
	}
	if seat != h.ActionSeat {
		return nil, fmt.Errorf("%w: seat %d acted, expected %d", ErrStaleAction, seat, h.ActionSeat)
	}
	actor := h.playerAt(seat)
	if actor == nil || actor.Status != Active {
		return nil, fmt.Errorf("%w: seat %d cannot act", ErrStaleAction, seat)
	}
	if action.Kind == rules.Raise && h.blockedRaisers[seat] {
		return nil, fmt.Errorf("%w: action is not reopened for seat %d", rules.ErrIllegalAction, seat)
	}

	table := rules.TableState{
		Street:           h.streetFromPhase(),
		BetToMatch:       h.BetToMatch,
		MinRaise:         h.MinRaise,
		BigBlind:         h.BigBlind,
		PotBeforeBet:     h.Pot.Total(),
		RaisesThisStreet: h.RaisesThisStreet,
	}
	actorState := rules.ActorState{CurrentBet: actor.CurrentBet, Chips: actor.Chips}

	if err := rules.Validate(h.Structure, table, actorState, action); err != nil {
		return nil, err
	}

	events := h.applyLegalAction(actor, action, false)
	if h.Phase != Settled {
		events = append(events, h.advanceIfRoundComplete()...)
	}
	return events, nil
}

// ApplyForced applies a default action (Check if legal, else Fold)
// chosen by the turn scheduler on timeout, per spec §4.G/§7.
func (h *Hand) ApplyForced(seat int) ([]Event, error) {
	actor := h.playerAt(seat)
	if actor == nil {
		return nil, ErrStaleAction
	}
	kind := rules.Fold
	if h.BetToMatch == actor.CurrentBet {
		kind = rules.Check
	}
	events := h.applyLegalAction(actor, rules.Action{Kind: kind}, true)
	if h.Phase != Settled {
		events = append(events, h.advanceIfRoundComplete()...)
	}
	return events, nil
}

func (h *Hand) applyLegalAction(actor *Player, action rules.Action, forced bool) []Event {
	var events []Event
	amount := 0
	delete(h.pending, actor.Seat)

	switch action.Kind {
	case rules.Fold:
		actor.Status = Folded
		h.Pot.Fold(actor.ID)

	case rules.Check:
		// no chip movement, no reopening

	case rules.Call:
		toCall := h.BetToMatch - actor.CurrentBet
		if toCall > actor.Chips {
			toCall = actor.Chips
		}
		amount = toCall
		h.moveChipsToPot(actor, toCall)

	case rules.Bet:
		amount = action.Amount
		h.moveChipsToPot(actor, action.Amount)
		h.onAggression(actor, true)

	case rules.Raise:
		fullRaise := rules.IsFullRaise(rules.TableState{BetToMatch: h.BetToMatch, MinRaise: h.MinRaise}, rules.ActorState{CurrentBet: actor.CurrentBet, Chips: actor.Chips}, action.Amount)
		delta := action.Amount - actor.CurrentBet
		amount = delta
		h.moveChipsToPot(actor, delta)
		h.onAggression(actor, fullRaise)

	case rules.AllIn:
		// All-in is classified by its relation to the current bet to
		// match, per spec §4.D: a bet if nothing is outstanding, a
		// raise (full or short) if it exceeds B, otherwise a short call.
		allInTotal := actor.CurrentBet + actor.Chips
		delta := actor.Chips
		amount = delta
		h.moveChipsToPot(actor, delta)
		switch {
		case h.BetToMatch == 0:
			h.onAggression(actor, true)
		case allInTotal > h.BetToMatch:
			fullRaise := rules.IsFullRaise(rules.TableState{BetToMatch: h.BetToMatch, MinRaise: h.MinRaise}, rules.ActorState{}, allInTotal)
			h.onAggression(actor, fullRaise)
		default:
			// short all-in call: pays less than B, no reopening at all.
		}
	}

	h.checkAllIn(actor)
	events = append(events, ActionApplied{Seat: actor.Seat, Kind: action.Kind, Amount: amount, Forced: forced})

	if h.nonFoldedCount() == 1 {
		events = append(events, h.settleNoShowdown()...)
		return events
	}

	h.ActionSeat = h.firstActorAfter(actor.Seat)
	return events
}

// onAggression updates MinRaise/RaisesThisStreet and the pending set
// after a bet or raise. A full raise reopens action for every other
// active player; a short all-in raise only forces players below the
// new bet to call or fold, and blocks anyone who already matched the
// old bet from raising again, per spec §4.D.
func (h *Hand) onAggression(actor *Player, fullRaise bool) {
	already := h.pending // snapshot before mutation: seats still owed a decision at the old level
	priorBetToMatch := h.BetToMatch

	h.MinRaise = rules.NextMinRaise(rules.TableState{BetToMatch: priorBetToMatch, MinRaise: h.MinRaise}, actor.CurrentBet)
	h.BetToMatch = actor.CurrentBet

	if fullRaise {
		h.blockedRaisers = make(map[int]bool)
		h.RaisesThisStreet++
		newPending := make(map[int]bool)
		for _, p := range h.Players {
			if p.Status == Active && p.Seat != actor.Seat {
				newPending[p.Seat] = true
			}
		}
		h.pending = newPending
		return
	}

	// Short all-in: seats that had already matched priorBetToMatch (i.e.
	// were not already pending) are blocked from raising further but
	// still owe a call against the new, higher bet.
	newPending := make(map[int]bool)
	for seat := range already {
		newPending[seat] = true
	}
	for _, p := range h.Players {
		if p.Status != Active || p.Seat == actor.Seat {
			continue
		}
		if p.CurrentBet < h.BetToMatch {
			newPending[p.Seat] = true
			if !already[p.Seat] {
				h.blockedRaisers[p.Seat] = true
			}
		}
	}
	h.pending = newPending
}

func (h *Hand) moveChipsToPot(p *Player, amount int) {
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	h.Pot.AddBet(p.ID, amount)
}

// firstActorAfter returns the next seat clockwise still owed a
// decision this street; if none remain, returns the current seat.
func (h *Hand) firstActorAfter(from int) int {
	n := len(h.Players)
	for i := 1; i <= n; i++ {
		seat := (from + i) % n
		if p := h.playerAt(seat); p != nil && p.Status == Active && h.pending[seat] {
			return seat
		}
	}
	return from
}

// IsBettingRoundComplete reports whether every seat that owes a
// decision has acted, per spec §4.E.
func (h *Hand) IsBettingRoundComplete() bool {
	if h.nonFoldedCount() <= 1 {
		return true
	}
	return len(h.pending) == 0
}

func (h *Hand) streetFromPhase() rules.Street {
	switch h.Phase {
	case Preflop:
		return rules.Preflop
	case Flop:
		return rules.Flop
	case Turn:
		return rules.Turn
	default:
		return rules.River
	}
}

// advanceIfRoundComplete collapses the street and deals the next one
// (or proceeds to showdown) once betting is settled.
func (h *Hand) advanceIfRoundComplete() []Event {
	if !h.IsBettingRoundComplete() {
		return nil
	}
	var events []Event

	playerBets := make(map[pot.PlayerID]int)
	for _, p := range h.Players {
		if p.CurrentBet > 0 {
			playerBets[p.ID] = p.CurrentBet
		}
	}
	h.Pot.CollapseStreet()
	events = append(events, RoundFinalized{PlayerBets: playerBets, PotTotal: h.Pot.Total()})
	for _, p := range h.Players {
		p.CurrentBet = 0
	}
	h.RaisesThisStreet = 0

	if h.activeActingCount() < 2 {
		// All-in runout: deal remaining streets automatically for showdown.
		for h.Phase != River {
			events = append(events, h.dealNextStreet())
		}
		events = append(events, h.settleShowdown()...)
		return events
	}

	if h.Phase == River {
		events = append(events, h.settleShowdown()...)
		return events
	}

	events = append(events, h.dealNextStreet())
	h.BetToMatch = 0
	h.MinRaise = h.BigBlind
	h.startStreetPending()
	h.ActionSeat = h.firstActorAfter(h.DealerSeat)
	return events
}

func (h *Hand) dealNextStreet() Event {
	var cards []deck.Card
	switch h.Phase {
	case Preflop:
		h.Phase = Flop
		cards = h.Deck.DrawN(3)
	case Flop:
		h.Phase = Turn
		cards = h.Deck.DrawN(1)
	case Turn:
		h.Phase = River
		cards = h.Deck.DrawN(1)
	}
	h.Community = append(h.Community, cards...)
	return StreetAdvanced{Phase: h.Phase, Cards: cards}
}

func (h *Hand) settleNoShowdown() []Event {
	var winnerSeat int
	for _, p := range h.Players {
		if p.Status != Folded && p.Status != SittingOut && p.Status != Away {
			winnerSeat = p.Seat
		}
	}

	var events []Event
	playerBets := make(map[pot.PlayerID]int)
	for _, p := range h.Players {
		if p.CurrentBet > 0 {
			playerBets[p.ID] = p.CurrentBet
		}
	}
	h.Pot.CollapseStreet()
	if len(playerBets) > 0 {
		events = append(events, RoundFinalized{PlayerBets: playerBets, PotTotal: h.Pot.Total()})
	}
	for _, p := range h.Players {
		p.CurrentBet = 0
	}

	layers := h.Pot.BuildLayers()
	payouts := make(map[pot.PlayerID]int)
	winnerID := h.playerAt(winnerSeat).ID
	winners := make([][]pot.PlayerID, len(layers))
	for i, l := range layers {
		winners[i] = []pot.PlayerID{winnerID}
		for k, v := range pot.Award(l, []pot.PlayerID{winnerID}) {
			payouts[k] += v
		}
	}
	for _, p := range h.Players {
		p.Chips += payouts[p.ID]
	}
	h.Pot = pot.NewManager() // every layer is now in a stack
	h.Phase = Settled
	return append(events,
		HandEndedNoShowdown{WinnerSeat: winnerSeat},
		PotsAwarded{Layers: layers, Winners: winners, Payouts: payouts},
	)
}

func (h *Hand) settleShowdown() []Event {
	h.Phase = Showdown
	ranks := make(map[pot.PlayerID]evaluator.HandRank)
	for _, p := range h.Players {
		if p.Status == Folded || p.Status == SittingOut || p.Status == Away {
			continue
		}
		seven := append(append([]deck.Card{}, p.HoleCards...), h.Community...)
		ranks[p.ID] = evaluator.Evaluate7(seven)
	}

	layers := h.Pot.BuildLayers()
	// pot.Award gives any odd chip to winners[0], so each layer's winners
	// are ordered by seat distance clockwise from the dealer (dealer last).
	n := len(h.Players)
	fromDealer := make(map[pot.PlayerID]int, n)
	for _, p := range h.Players {
		fromDealer[p.ID] = (p.Seat-h.DealerSeat+n-1)%n + 1
	}
	payouts := make(map[pot.PlayerID]int)
	winners := make([][]pot.PlayerID, len(layers))
	for i, l := range layers {
		layerWinners := bestAmong(l.Eligible, ranks)
		sort.SliceStable(layerWinners, func(a, b int) bool { return fromDealer[layerWinners[a]] < fromDealer[layerWinners[b]] })
		winners[i] = layerWinners
		for k, v := range pot.Award(l, layerWinners) {
			payouts[k] += v
		}
	}
	for _, p := range h.Players {
		p.Chips += payouts[p.ID]
	}
	h.Pot = pot.NewManager() // every layer is now in a stack
	h.Phase = Settled

	return []Event{
		Showdown{Hands: ranks},
		PotsAwarded{Layers: layers, Winners: winners, Payouts: payouts},
	}
}

func bestAmong(eligible []pot.PlayerID, ranks map[pot.PlayerID]evaluator.HandRank) []pot.PlayerID {
	var best []pot.PlayerID
	var bestRank evaluator.HandRank
	for _, id := range eligible {
		rank, ok := ranks[id]
		if !ok {
			continue
		}
		if len(best) == 0 || rank.Compare(bestRank) > 0 {
			best = []pot.PlayerID{id}
			bestRank = rank
		} else if rank.Compare(bestRank) == 0 {
			best = append(best, id)
		}
	}
	return best
}

// Abort rolls every player's chips back to their pre-hand snapshot,
// per spec §7's internal-invariant-breach handling.
func (h *Hand) Abort() {
	for _, p := range h.Players {
		p.Chips = h.preHandChips[p.ID]
	}
	h.Phase = Settled
}

// LegalActions returns the options available to seat along with the
// amounts an action_request needs (call_amount, min_raise, max_raise),
// per spec §4.F step 5 and §4.G. A nil options slice means seat cannot
// currently act.
func (h *Hand) LegalActions(seat int) (options []rules.ActionKind, callAmount, minRaise, maxRaise int) {
	actor := h.playerAt(seat)
	if actor == nil || actor.Status != Active {
		return nil, 0, 0, 0
	}
	table := rules.TableState{
		Street:           h.streetFromPhase(),
		BetToMatch:       h.BetToMatch,
		MinRaise:         h.MinRaise,
		BigBlind:         h.BigBlind,
		PotBeforeBet:     h.Pot.Total(),
		RaisesThisStreet: h.RaisesThisStreet,
	}
	actorState := rules.ActorState{CurrentBet: actor.CurrentBet, Chips: actor.Chips}
	callAmount = h.BetToMatch - actor.CurrentBet

	options = []rules.ActionKind{rules.Fold}
	switch {
	case callAmount <= 0:
		callAmount = 0
		options = append(options, rules.Check)
		if !h.blockedRaisers[seat] {
			if min, max, err := h.Structure.BetRange(table, actorState); err == nil {
				minRaise, maxRaise = min, max
				options = append(options, rules.Bet)
			}
		}
	case callAmount >= actor.Chips:
		// nothing to add; AllIn below covers calling off the rest of the stack
	default:
		options = append(options, rules.Call)
		if !h.blockedRaisers[seat] {
			if min, max, err := h.Structure.RaiseRange(table, actorState); err == nil {
				minRaise, maxRaise = min, max
				options = append(options, rules.Raise)
			}
		}
	}
	if actor.Chips > 0 {
		options = append(options, rules.AllIn)
	}
	return options, callAmount, minRaise, maxRaise
}
