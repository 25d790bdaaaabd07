package deck

import "math/rand"

// Deck is an ordered sequence of playing cards. Shuffling is always seeded
// so a hand's deck state can be captured and replayed deterministically
// from the hand history's recorded seed.
type Deck struct {
	cards []Card
	seed  int64
	rng   *rand.Rand
}

// New creates a fresh, unshuffled standard 52-card deck.
func New() *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	d.reset()
	return d
}

// NewShuffled creates a standard 52-card deck and shuffles it with the
// given seed. The same seed always produces the same card order.
func NewShuffled(seed int64) *Deck {
	d := New()
	d.Shuffle(seed)
	return d
}

func (d *Deck) reset() {
	d.cards = d.cards[:0]
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
}

// Shuffle restores the deck to a full 52 cards and applies a Fisher-Yates
// permutation seeded deterministically from seed. The seed is retained so
// Seed can be recorded in hand history for later replay.
func (d *Deck) Shuffle(seed int64) {
	d.reset()
	d.seed = seed
	d.rng = rand.New(rand.NewSource(seed))
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Seed returns the seed used for the deck's most recent shuffle.
func (d *Deck) Seed() int64 {
	return d.seed
}

// Draw removes and returns the top card from the deck.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DrawN draws n cards from the deck, in order. If fewer than n remain, it
// returns as many as are available.
func (d *Deck) DrawN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		card, _ := d.Draw()
		cards = append(cards, card)
	}
	return cards
}

// CardsRemaining returns the number of cards left in the deck.
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// IsEmpty returns true if the deck has no cards left.
func (d *Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// Peek returns the top card without removing it from the deck.
func (d *Deck) Peek() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	return d.cards[0], true
}
