package deck

import "testing"

func TestNewIsFullAndUnshuffled(t *testing.T) {
	d := New()
	if d.CardsRemaining() != 52 {
		t.Fatalf("expected 52 cards, got %d", d.CardsRemaining())
	}
	first, ok := d.Peek()
	if !ok {
		t.Fatal("expected a card")
	}
	if first != NewCard(Spades, Two) {
		t.Errorf("expected first card of unshuffled deck to be 2s, got %s", first)
	}
}

func TestShuffleIsDeterministic(t *testing.T) {
	a := NewShuffled(42)
	b := NewShuffled(42)

	for i := 0; i < 52; i++ {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		if ca != cb {
			t.Fatalf("card %d differs between decks with same seed: %s vs %s", i, ca, cb)
		}
	}
}

func TestShuffleDiffersAcrossSeeds(t *testing.T) {
	a := NewShuffled(1)
	b := NewShuffled(2)

	same := true
	for i := 0; i < 52; i++ {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		if ca != cb {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different seeds to produce different orderings")
	}
}

func TestSeedRoundTrip(t *testing.T) {
	d := NewShuffled(12345)
	if d.Seed() != 12345 {
		t.Errorf("expected Seed() to return 12345, got %d", d.Seed())
	}
}

func TestDrawExhaustsDeck(t *testing.T) {
	d := New()
	drawn := map[Card]bool{}
	for i := 0; i < 52; i++ {
		c, ok := d.Draw()
		if !ok {
			t.Fatalf("expected to draw card %d", i)
		}
		if drawn[c] {
			t.Fatalf("drew duplicate card %s", c)
		}
		drawn[c] = true
	}
	if !d.IsEmpty() {
		t.Error("expected deck to be empty after drawing 52 cards")
	}
	if _, ok := d.Draw(); ok {
		t.Error("expected Draw to fail on empty deck")
	}
}

func TestDrawN(t *testing.T) {
	d := New()
	cards := d.DrawN(5)
	if len(cards) != 5 {
		t.Fatalf("expected 5 cards, got %d", len(cards))
	}
	if d.CardsRemaining() != 47 {
		t.Errorf("expected 47 cards remaining, got %d", d.CardsRemaining())
	}

	rest := d.DrawN(100)
	if len(rest) != 47 {
		t.Errorf("expected DrawN to cap at remaining cards, got %d", len(rest))
	}
}
