package registry

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pokerlab/trainer/internal/adapters"
	"github.com/pokerlab/trainer/internal/config"
	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/rules"
)

// foldingDecider always folds; it drives a heads-up all-AI table to an
// instant settle every hand, so tests can exercise the
// deal-next-hand/rotate-button machinery without a human actor.
type foldingDecider struct{}

func (foldingDecider) Decide(ctx context.Context, archetype string, state adapters.StateView) (adapters.Decision, error) {
	return adapters.Decision{Action: rules.Fold}, nil
}

func twoSeatAIConfig(name string) config.GameConfig {
	return config.GameConfig{
		Name:               name,
		SmallBlind:         1,
		BigBlind:           2,
		StartingStack:      200,
		MaxPlayers:         2,
		TurnClockSeconds:   30,
		AITimeoutSeconds:   15,
		AckTimeoutMs:       3000,
		IdleTimeoutSeconds: 600,
		Seats: []config.SeatConfig{
			{Seat: 0, Archetype: "TAG", Name: "a"},
			{Seat: 1, Archetype: "TAG", Name: "b"},
		},
	}
}

func waitForHandSettled(t *testing.T, g *Game) {
	t.Helper()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.current != nil && g.current.Phase == hand.Settled
	}, time.Second, 5*time.Millisecond)
}

func TestCreateDealsFirstHandImmediately(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, err := reg.Create(ctx, twoSeatAIConfig("g1"))
	require.NoError(t, err)

	waitForHandSettled(t, g)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Equal(t, 1, g.handsDealt)
	total := 0
	for _, p := range g.players {
		total += p.Chips
	}
	require.Equal(t, 400, total, "chips must be conserved, only moved between seats")
}

func TestGameDealsNextHandAfterSettleDelay(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, err := reg.Create(ctx, twoSeatAIConfig("g2"))
	require.NoError(t, err)

	waitForHandSettled(t, g)

	g.mu.Lock()
	firstDealer := g.dealerSeat
	g.mu.Unlock()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	clock.Advance(interHandDelay).MustWait(waitCtx)

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.handsDealt == 2
	}, time.Second, 5*time.Millisecond)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEqual(t, firstDealer, g.dealerSeat, "the button should rotate to the other seat heads-up")
	total := 0
	for _, p := range g.players {
		total += p.Chips
	}
	require.Equal(t, 400, total)
}

func TestSnapshotReturnsOnlyTheRequestingSeatsHoleCards(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, err := reg.Create(ctx, twoSeatAIConfig("g3"))
	require.NoError(t, err)

	waitForHandSettled(t, g)

	handle := g.Handle()
	g.mu.Lock()
	id0, id1 := string(g.players[0].ID), string(g.players[1].ID)
	ownCards := make([]string, len(g.current.Players[0].HoleCards))
	for i, c := range g.current.Players[0].HoleCards {
		ownCards[i] = c.String()
	}
	otherCards := make([]string, len(g.current.Players[1].HoleCards))
	for i, c := range g.current.Players[1].HoleCards {
		otherCards[i] = c.String()
	}
	g.mu.Unlock()

	view, ok := handle.Snapshot(id0)
	require.True(t, ok)
	require.Len(t, view.Players, 2)
	require.Equal(t, ownCards, view.YourHoleCards)

	view2, ok := handle.Snapshot(id1)
	require.True(t, ok)
	require.Equal(t, otherCards, view2.YourHoleCards)
	require.NotEqual(t, view.YourHoleCards, view2.YourHoleCards)
}

func TestSeatForResolvesRegisteredPlayerIDs(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, err := reg.Create(ctx, twoSeatAIConfig("g4"))
	require.NoError(t, err)

	g.mu.Lock()
	id0, id1 := string(g.players[0].ID), string(g.players[1].ID)
	g.mu.Unlock()

	handle := g.Handle()
	seat, ok := handle.SeatFor(id0)
	require.True(t, ok)
	require.Equal(t, 0, seat)

	seat, ok = handle.SeatFor(id1)
	require.True(t, ok)
	require.Equal(t, 1, seat)

	_, ok = handle.SeatFor("nobody")
	require.False(t, ok)
}

func TestRegistryCreateReplacesExistingGameWithSameName(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first, err := reg.Create(ctx, twoSeatAIConfig("dup"))
	require.NoError(t, err)
	waitForHandSettled(t, first)

	second, err := reg.Create(ctx, twoSeatAIConfig("dup"))
	require.NoError(t, err)
	require.NotSame(t, first, second)

	got, ok := reg.Lookup("dup")
	require.True(t, ok)
	require.Same(t, second, got)
}

func TestRegistryDestroyRemovesGameAndClearsDefault(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := reg.Create(ctx, twoSeatAIConfig("solo"))
	require.NoError(t, err)

	_, ok := reg.Default()
	require.True(t, ok)

	reg.Destroy("solo")

	_, ok = reg.Lookup("solo")
	require.False(t, ok)
	_, ok = reg.Default()
	require.False(t, ok)
}

func TestRegistryListReturnsAllGameIDs(t *testing.T) {
	clock := quartz.NewMock(t)
	reg := New(clock, foldingDecider{}, t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := reg.Create(ctx, twoSeatAIConfig("one"))
	require.NoError(t, err)
	_, err = reg.Create(ctx, twoSeatAIConfig("two"))
	require.NoError(t, err)

	ids := reg.List()
	require.ElementsMatch(t, []string{"one", "two"}, ids)
}
