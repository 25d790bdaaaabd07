package adapters

import (
	"context"
	"math/rand"

	"github.com/pokerlab/trainer/internal/deck"
	"github.com/pokerlab/trainer/internal/evaluator"
	"github.com/pokerlab/trainer/internal/rules"
)

// HeuristicDecider is a reference LLMDecider: a set of
// archetype-parameterized decision rules standing in for a real LLM
// provider, so a server is runnable end to end without one configured,
// per spec §1. The archetypes mirror the fixed-strategy opponents of a
// CLI poker trainer (tight-aggressive, loose-aggressive, a nit, a
// calling station, a maniac).
type HeuristicDecider struct {
	rng *rand.Rand
}

// NewHeuristicDecider creates a decider seeded for reproducible play.
func NewHeuristicDecider(seed int64) *HeuristicDecider {
	return &HeuristicDecider{rng: rand.New(rand.NewSource(seed))}
}

func (d *HeuristicDecider) Decide(ctx context.Context, archetype string, state StateView) (Decision, error) {
	strength := d.handStrength(state)
	switch archetype {
	case "TAG":
		return d.tag(strength, state), nil
	case "LAG":
		return d.lag(strength, state), nil
	case "Nit":
		return d.nit(strength, state), nil
	case "CallingStation":
		return d.callingStation(state), nil
	case "Maniac":
		return d.maniac(state), nil
	default:
		return d.tag(strength, state), nil
	}
}

// handStrength returns the preflop percentile of the hole cards, or a
// Monte Carlo equity estimate against a random range once the board
// has cards, per the teacher's equity estimator.
func (d *HeuristicDecider) handStrength(state StateView) float64 {
	var hole []deck.Card
	for _, s := range state.HoleCards {
		if c, err := deck.ParseCard(s); err == nil {
			hole = append(hole, c)
		}
	}
	if len(hole) != 2 {
		return 0
	}
	if len(state.Community) == 0 {
		return deck.GetHandPercentile(hole)
	}
	var board []deck.Card
	for _, s := range state.Community {
		if c, err := deck.ParseCard(s); err == nil {
			board = append(board, c)
		}
	}
	return evaluator.EstimateEquity(hole, board, evaluator.RandomRange{}, 200, d.rng)
}

func (d *HeuristicDecider) has(state StateView, kind rules.ActionKind) bool {
	for _, o := range state.Options {
		if o == kind {
			return true
		}
	}
	return false
}

// tag plays a tight-aggressive range: raises premium hands, otherwise
// checks or folds to aggression. Grounded on the tight-aggressive bot
// archetype's "premium hands only" logic.
func (d *HeuristicDecider) tag(strength float64, state StateView) Decision {
	if strength > 0.85 {
		if d.has(state, rules.Raise) {
			return Decision{Action: rules.Raise, Amount: state.MinRaise + (state.MaxRaise-state.MinRaise)/4, Reasoning: "TAG raises a premium hand"}
		}
		if d.has(state, rules.Bet) {
			return Decision{Action: rules.Bet, Amount: state.MinRaise, Reasoning: "TAG bets a premium hand"}
		}
	}
	if d.has(state, rules.Check) {
		return Decision{Action: rules.Check, Reasoning: "TAG checks a marginal hand"}
	}
	if strength > 0.55 && d.has(state, rules.Call) {
		return Decision{Action: rules.Call, Reasoning: "TAG calls with a playable hand"}
	}
	return Decision{Action: rules.Fold, Reasoning: "TAG folds outside its range"}
}

// lag plays a wider range and bets more often than tag.
func (d *HeuristicDecider) lag(strength float64, state StateView) Decision {
	if strength > 0.6 {
		if d.has(state, rules.Raise) {
			return Decision{Action: rules.Raise, Amount: state.MinRaise, Reasoning: "LAG raises a wide range"}
		}
		if d.has(state, rules.Bet) {
			return Decision{Action: rules.Bet, Amount: state.MinRaise, Reasoning: "LAG bets a wide range"}
		}
	}
	if d.has(state, rules.Check) {
		return Decision{Action: rules.Check, Reasoning: "LAG checks back"}
	}
	if strength > 0.35 && d.has(state, rules.Call) {
		return Decision{Action: rules.Call, Reasoning: "LAG calls to see another card"}
	}
	return Decision{Action: rules.Fold, Reasoning: "LAG gives up a hand with no equity"}
}

// nit folds anything short of a very strong hand, grounded on the
// teacher's FoldBot (check when free, otherwise fold) tightened with a
// strength gate so it still raises the nuts.
func (d *HeuristicDecider) nit(strength float64, state StateView) Decision {
	if strength > 0.95 && d.has(state, rules.Raise) {
		return Decision{Action: rules.Raise, Amount: state.MinRaise, Reasoning: "Nit raises the nuts"}
	}
	if d.has(state, rules.Check) {
		return Decision{Action: rules.Check, Reasoning: "Nit checks rather than bet"}
	}
	return Decision{Action: rules.Fold, Reasoning: "Nit folds to any pressure"}
}

// callingStation checks or calls whenever legal and almost never
// folds, grounded on the teacher's CallBot default behavior.
func (d *HeuristicDecider) callingStation(state StateView) Decision {
	if d.has(state, rules.Check) {
		return Decision{Action: rules.Check, Reasoning: "calling station checks"}
	}
	if d.has(state, rules.Call) {
		return Decision{Action: rules.Call, Reasoning: "calling station calls"}
	}
	return Decision{Action: rules.Fold, Reasoning: "calling station forced to fold"}
}

// maniac shoves or raises large most of the time, grounded on the
// teacher's ManiacBot shove-frequency logic.
func (d *HeuristicDecider) maniac(state StateView) Decision {
	if d.rng.Float64() < 0.5 {
		if d.has(state, rules.AllIn) {
			return Decision{Action: rules.AllIn, Reasoning: "maniac shoves"}
		}
		if d.has(state, rules.Raise) {
			return Decision{Action: rules.Raise, Amount: state.MaxRaise, Reasoning: "maniac max-raises"}
		}
		if d.has(state, rules.Bet) {
			return Decision{Action: rules.Bet, Amount: state.MaxRaise, Reasoning: "maniac max-bets"}
		}
	}
	if d.has(state, rules.Check) {
		return Decision{Action: rules.Check, Reasoning: "maniac checks"}
	}
	if d.has(state, rules.Call) {
		return Decision{Action: rules.Call, Reasoning: "maniac calls"}
	}
	return Decision{Action: rules.Fold, Reasoning: "maniac folds"}
}
