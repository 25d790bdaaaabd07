// Package pot implements the contribution ledger and side-pot layering
// described in the hand lifecycle engine's Pot Manager component: it
// tracks what each player has put in, collapses a street's bets into
// the running total, and at showdown builds the ordered pot layers
// that the rules engine and orchestrator award against.
package pot

import (
	"fmt"
	"sort"
)

// PlayerID identifies a seated player for contribution accounting.
type PlayerID string

// Layer is one segment of the hand's total pot. Eligible players are
// those who contributed at least the layer's per-player threshold and
// have not folded.
type Layer struct {
	Amount   int
	Eligible []PlayerID
}

// Manager tracks per-player contributions for a single hand.
type Manager struct {
	streetBets map[PlayerID]int
	committed  map[PlayerID]int
	folded     map[PlayerID]bool
	order      []PlayerID // first-seen order, stable for deterministic layer iteration
}

// NewManager returns an empty ledger.
func NewManager() *Manager {
	return &Manager{
		streetBets: make(map[PlayerID]int),
		committed:  make(map[PlayerID]int),
		folded:     make(map[PlayerID]bool),
	}
}

func (m *Manager) track(player PlayerID) {
	if _, ok := m.committed[player]; !ok {
		m.order = append(m.order, player)
		m.committed[player] = 0
	}
}

// AddBet records an incremental contribution from player on the
// current street (a blind post, a call, a bet, or a raise delta).
func (m *Manager) AddBet(player PlayerID, amount int) {
	if amount < 0 {
		panic(fmt.Sprintf("pot: negative contribution %d for %s", amount, player))
	}
	m.track(player)
	m.streetBets[player] += amount
}

// StreetBet returns the player's contribution so far on the current street.
func (m *Manager) StreetBet(player PlayerID) int {
	return m.streetBets[player]
}

// Fold marks a player ineligible for any future pot layer. Their prior
// contributions remain in the pot.
func (m *Manager) Fold(player PlayerID) {
	m.track(player)
	m.folded[player] = true
}

// CollapseStreet folds the current street's bets into each player's
// running total and clears the street ledger, per spec §4.E's
// per-street reset.
func (m *Manager) CollapseStreet() {
	for player, amount := range m.streetBets {
		m.committed[player] += amount
	}
	m.streetBets = make(map[PlayerID]int)
}

// Total returns the sum of all contributions collected so far,
// including any not yet collapsed from the current street.
func (m *Manager) Total() int {
	total := 0
	for _, amount := range m.committed {
		total += amount
	}
	for _, amount := range m.streetBets {
		total += amount
	}
	return total
}

// BuildLayers constructs ordered pot layers from total (post-collapse)
// contributions, by ascending all-in threshold, per spec §4.C. Callers
// must CollapseStreet first so committed reflects the whole hand.
func (m *Manager) BuildLayers() []Layer {
	thresholds := distinctThresholds(m.committed)

	var layers []Layer
	prev := 0
	for _, threshold := range thresholds {
		amount := 0
		var eligible []PlayerID
		for _, player := range m.order {
			contributed := m.committed[player]
			if contributed <= prev {
				continue
			}
			slice := contributed
			if slice > threshold {
				slice = threshold
			}
			amount += slice - prev
			if contributed >= threshold && !m.folded[player] {
				eligible = append(eligible, player)
			}
		}
		if amount > 0 {
			// Eligibility only narrows as the threshold rises, so a layer with
			// as many eligible players as the one below has the same players:
			// a level set only by a folded player's contribution opens no layer.
			if n := len(layers); n > 0 && len(layers[n-1].Eligible) == len(eligible) {
				layers[n-1].Amount += amount
			} else {
				layers = append(layers, Layer{Amount: amount, Eligible: eligible})
			}
		}
		prev = threshold
	}
	return layers
}

func distinctThresholds(committed map[PlayerID]int) []int {
	seen := make(map[int]bool)
	var thresholds []int
	for _, amount := range committed {
		if amount > 0 && !seen[amount] {
			seen[amount] = true
			thresholds = append(thresholds, amount)
		}
	}
	sort.Ints(thresholds)
	return thresholds
}

// RakeConfig parameterizes the cash-game rake formula of spec §4.C.
type RakeConfig struct {
	Percentage       float64 // e.g. 0.05 for 5%
	CapInBigBlinds    int     // rake cap expressed as a multiple of the big blind
	NoFlopNoDropBBs   int     // pots below this many big blinds are rake-free; defaults to 10
}

// DefaultRakeConfig matches the defaults named in spec §4.C.
func DefaultRakeConfig() RakeConfig {
	return RakeConfig{Percentage: 0.05, CapInBigBlinds: 3, NoFlopNoDropBBs: 10}
}

// Rake computes the cash-game rake for a given pot total, per the
// formula `min(floor(pot*pct), bb*cap)`, zero below the no-flop-no-drop
// threshold.
func Rake(potTotal, bigBlind int, cfg RakeConfig) int {
	threshold := cfg.NoFlopNoDropBBs
	if threshold == 0 {
		threshold = 10
	}
	if potTotal < threshold*bigBlind {
		return 0
	}
	byPercentage := int(float64(potTotal) * cfg.Percentage)
	cap := cfg.CapInBigBlinds * bigBlind
	if byPercentage > cap {
		return cap
	}
	return byPercentage
}

// ApplyRake withdraws rake from each layer in proportion to its share
// of the total pot, per spec §4.C. Each layer's ideal share is
// rake*layer.Amount/total; the integer-division remainder is handed
// out one chip at a time to the layers with the largest fractional
// remainder (largest-remainder method), so the total withdrawn always
// equals min(rake, total) with no chip left unaccounted for. Returns
// the post-rake layers and the amount actually withdrawn.
func ApplyRake(layers []Layer, rake int) ([]Layer, int) {
	out := make([]Layer, len(layers))
	copy(out, layers)

	total := 0
	for _, l := range out {
		total += l.Amount
	}
	if total == 0 || rake <= 0 {
		return out, 0
	}
	if rake > total {
		rake = total
	}

	shares := make([]int, len(out))
	remainders := make([]int, len(out))
	allocated := 0
	for i, l := range out {
		num := rake * l.Amount
		shares[i] = num / total
		remainders[i] = num % total
		allocated += shares[i]
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for _, idx := range order[:rake-allocated] {
		shares[idx]++
	}

	withdrawn := 0
	for i := range out {
		take := shares[i]
		if take > out[i].Amount {
			take = out[i].Amount
		}
		out[i].Amount -= take
		withdrawn += take
	}
	return out, withdrawn
}

// Award splits a layer's amount equally among winners, giving any
// indivisible remainder to the winner seated first clockwise from the
// dealer, per spec §4.C's documented tiebreak. winners must be a
// non-empty subset of the layer's eligible players, ordered by seat
// distance clockwise from the dealer (winners[0] receives the remainder).
func Award(layer Layer, winners []PlayerID) map[PlayerID]int {
	if len(winners) == 0 {
		return nil
	}
	share := layer.Amount / len(winners)
	remainder := layer.Amount % len(winners)

	payouts := make(map[PlayerID]int, len(winners))
	for i, winner := range winners {
		amount := share
		if i == 0 {
			amount += remainder
		}
		payouts[winner] += amount
	}
	return payouts
}
