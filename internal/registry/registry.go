package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/adapters"
	"github.com/pokerlab/trainer/internal/config"
)

// Registry creates, looks up, and destroys Game instances, per spec
// §4.J. Grounded on the teacher's GameManager: a single
// sync.RWMutex-protected map, a first-registered "default" game for
// clients that don't name one.
type Registry struct {
	logger  zerolog.Logger
	clock   quartz.Clock
	decider adapters.LLMDecider
	baseDir string

	mu         sync.RWMutex
	games      map[string]*Game
	defaultID  string
}

// New creates an empty Registry. decider is the LLMDecider every
// created game's AI seats use; baseDir is where each game's hand
// history JSONL file is written.
func New(clock quartz.Clock, decider adapters.LLMDecider, baseDir string, logger zerolog.Logger) *Registry {
	return &Registry{
		logger:  logger.With().Str("component", "registry").Logger(),
		clock:   clock,
		decider: decider,
		baseDir: baseDir,
		games:   make(map[string]*Game),
	}
}

// Create builds and starts a new game from cfg, keyed by cfg.Name. The
// first game created becomes the default. Creating a game under a name
// already in use replaces it, destroying the prior instance first.
func (r *Registry) Create(ctx context.Context, cfg config.GameConfig) (*Game, error) {
	r.mu.Lock()
	if existing, ok := r.games[cfg.Name]; ok {
		delete(r.games, cfg.Name)
		r.mu.Unlock()
		existing.Destroy()
		r.mu.Lock()
	}

	g, err := newGame(cfg.Name, cfg, r.decider, r.clock, r.baseDir, r.logger)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry: create game %q: %w", cfg.Name, err)
	}
	g.onIdle = func() { r.Destroy(cfg.Name) }

	r.games[cfg.Name] = g
	if r.defaultID == "" {
		r.defaultID = cfg.Name
	}
	r.mu.Unlock()

	g.Run(ctx)
	return g, nil
}

// Lookup returns the game registered under id, touching its idle timer
// on the caller's behalf (a connecting or reconnecting session counts
// as activity).
func (r *Registry) Lookup(id string) (*Game, bool) {
	r.mu.RLock()
	g, ok := r.games[id]
	r.mu.RUnlock()
	if ok {
		g.Touch()
	}
	return g, ok
}

// Default returns the first game created, for clients that connect
// without naming one.
func (r *Registry) Default() (*Game, bool) {
	r.mu.RLock()
	id := r.defaultID
	r.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return r.Lookup(id)
}

// Destroy removes and tears down the game registered under id.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	g, ok := r.games[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.games, id)
	if r.defaultID == id {
		r.defaultID = ""
		for otherID := range r.games {
			r.defaultID = otherID
			break
		}
	}
	r.mu.Unlock()

	g.Destroy()
}

// List returns the IDs of every currently registered game.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown destroys every registered game, for process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	games := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.games = make(map[string]*Game)
	r.defaultID = ""
	r.mu.Unlock()

	for _, g := range games {
		g.Destroy()
	}
}
