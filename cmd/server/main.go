// Command server runs the poker training server: it loads an HCL
// configuration file, starts one self-driving Game per configured
// table via internal/registry, and serves each game's WebSocket
// endpoint at /ws/game/{game_id}. Grounded on the teacher's
// cmd/server/main.go (kong for flags, zerolog console writer for
// output, signal-driven graceful shutdown) with the bot-pool/NPC
// simulation surface replaced by the registry+session wiring this
// domain needs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/adapters"
	"github.com/pokerlab/trainer/internal/config"
	"github.com/pokerlab/trainer/internal/registry"
	"github.com/pokerlab/trainer/internal/session"
)

type CLI struct {
	Config string `kong:"default='server.hcl',help='Path to the HCL configuration file'"`
	Addr   string `kong:"help='Override the configured listen address'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	Seed   int64  `kong:"help='Deterministic RNG seed for AI decisions and shuffles'"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("trainer-server"),
		kong.Description("Texas Hold'em training server: one human seat against configurable AI archetypes"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	root, err := config.Load(cli.Config)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cli.Addr != "" {
		root.Server.Address = cli.Addr
	}
	if err := root.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := os.MkdirAll(root.Server.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data directory")
	}

	clock := quartz.NewReal()
	decider := adapters.NewHeuristicDecider(cli.Seed)
	reg := registry.New(clock, decider, root.Server.DataDir, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, gameCfg := range root.Games {
		if _, err := reg.Create(ctx, gameCfg); err != nil {
			logger.Fatal().Err(err).Str("game", gameCfg.Name).Msg("failed to start game")
		}
		logger.Info().Str("game", gameCfg.Name).Int("seats", len(gameCfg.Seats)).Msg("game started")
	}

	srv := newServer(logger, reg)

	listener, err := net.Listen("tcp", root.Server.Address)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", root.Server.Address).Msg("failed to bind listen address")
	}

	httpServer := &http.Server{Handler: srv.mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", root.Server.Address).Msg("server listening")
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during http shutdown")
	}
	cancel()
	reg.Shutdown()
}

// server wires a Registry to HTTP routes: a WebSocket endpoint per
// game and a health check. Grounded on the teacher's Server.mux /
// ensureRoutes split, trimmed to the routes this domain exposes (no
// admin/stats endpoints — those were a bot-pool-era surface tied to
// NPC simulation runs, not this training server).
type server struct {
	logger   zerolog.Logger
	registry *registry.Registry
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

func newServer(logger zerolog.Logger, reg *registry.Registry) *server {
	s := &server{
		logger:   logger,
		registry: reg,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("GET /ws/game/{game_id}", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// handleWebSocket accepts a connection for /ws/game/{game_id}?player_id=…,
// per spec §4.H's transport shape. Grounded on the teacher's
// Server.handleWebSocket, with bot-ID generation and bot-pool
// registration replaced by resolving an already-seated player ID
// against the target game's registry handle.
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("game_id")
	playerID := r.URL.Query().Get("player_id")

	game, ok := s.registry.Lookup(gameID)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	handle := game.Handle()
	if playerID == "" {
		http.Error(w, "player_id is required", http.StatusBadRequest)
		return
	}
	if _, seated := handle.SeatFor(playerID); !seated {
		http.Error(w, "unknown player_id for this game", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := session.New(conn, handle.GameID, playerID, handle, s.logger)
	sess.Start()

	s.logger.Debug().Str("game_id", handle.GameID).Str("player_id", playerID).Msg("session connected")
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","games":%d}`, len(s.registry.List()))
}
