// Package config loads the server's HCL configuration file: the
// listen address and log level, plus one block per game to create at
// startup (blinds, ante, starting stacks, seat archetypes, timeouts).
// Grounded on the teacher's internal/server/config.go
// (hclparse.NewParser + gohcl.DecodeBody, defaults applied after
// decode, a Validate method), generalized from a single flat
// server+tables+bots document to the game-centric shape this server's
// domain needs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// SeatConfig configures one seat at a game's table. Seat blocks are
// unlabeled and accumulate into GameConfig.Seats in document order;
// each names its own seat index explicitly via Seat rather than
// relying on a string-typed HCL block label, which gohcl requires for
// label fields but which would force an awkward string<->int
// conversion here.
type SeatConfig struct {
	Seat      int    `hcl:"seat"`
	IsHuman   bool   `hcl:"human,optional"`
	Archetype string `hcl:"archetype,optional"`
	Name      string `hcl:"name,optional"`

	// PlayerID, when set, is the ID a session must present to occupy
	// this seat (the `player_id` query parameter on
	// /ws/game/{game_id}). Operators set it for human seats so a
	// player knows what to connect with; left blank, the registry
	// generates one, which only a caller with access to the running
	// Game can ever learn, so blank is only useful for AI seats.
	PlayerID string `hcl:"player_id,optional"`
}

// GameConfig configures one game the registry creates at startup.
type GameConfig struct {
	Name               string       `hcl:"name,label"`
	SmallBlind         int          `hcl:"small_blind"`
	BigBlind           int          `hcl:"big_blind"`
	Ante               int          `hcl:"ante,optional"`
	StartingStack      int          `hcl:"starting_stack,optional"`
	MaxPlayers         int          `hcl:"max_players,optional"`
	TurnClockSeconds   int          `hcl:"turn_clock_seconds,optional"`
	AITimeoutSeconds   int          `hcl:"ai_timeout_seconds,optional"`
	AckTimeoutMs       int          `hcl:"ack_timeout_ms,optional"`
	IdleTimeoutSeconds int          `hcl:"idle_timeout_seconds,optional"`
	Seats              []SeatConfig `hcl:"seat,block"`
}

// TurnClock, AITimeout, AckTimeout, and IdleTimeout convert the
// config's plain-integer-second fields to time.Duration for callers
// that wire them directly into scheduler/orchestrator/registry
// constructors.
func (g GameConfig) TurnClock() time.Duration {
	return time.Duration(g.TurnClockSeconds) * time.Second
}

func (g GameConfig) AITimeout() time.Duration {
	return time.Duration(g.AITimeoutSeconds) * time.Second
}

func (g GameConfig) AckTimeout() time.Duration {
	return time.Duration(g.AckTimeoutMs) * time.Millisecond
}

func (g GameConfig) IdleTimeout() time.Duration {
	return time.Duration(g.IdleTimeoutSeconds) * time.Second
}

// ServerSettings is the process-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
	DataDir  string `hcl:"data_dir,optional"`
}

// Root is the top-level decoded configuration document.
type Root struct {
	Server ServerSettings `hcl:"server,block"`
	Games  []GameConfig   `hcl:"game,block"`
}

// Default returns the configuration used when no file is present: one
// heads-up game, a human in seat 0 and a TAG archetype AI in seat 1.
func Default() *Root {
	return &Root{
		Server: ServerSettings{
			Address:  ":8080",
			LogLevel: "info",
			DataDir:  "./data",
		},
		Games: []GameConfig{
			{
				Name:               "default",
				SmallBlind:         1,
				BigBlind:           2,
				StartingStack:      200,
				MaxPlayers:         2,
				TurnClockSeconds:   30,
				AITimeoutSeconds:   15,
				AckTimeoutMs:       3000,
				IdleTimeoutSeconds: 600,
				Seats: []SeatConfig{
					{Seat: 0, IsHuman: true, Name: "you", PlayerID: "player"},
					{Seat: 1, Archetype: "TAG", Name: "tag-bot"},
				},
			},
		},
	}
}

// Load reads and decodes an HCL configuration file, applying defaults
// for any field the file omits. A missing file is not an error; it
// yields Default().
func Load(path string) (*Root, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %s", path, diags.Error())
	}

	var root Root
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %s", path, diags.Error())
	}

	applyDefaults(&root)
	return &root, nil
}

func applyDefaults(root *Root) {
	defaults := Default()
	if root.Server.Address == "" {
		root.Server.Address = defaults.Server.Address
	}
	if root.Server.LogLevel == "" {
		root.Server.LogLevel = defaults.Server.LogLevel
	}
	if root.Server.DataDir == "" {
		root.Server.DataDir = defaults.Server.DataDir
	}

	for i := range root.Games {
		g := &root.Games[i]
		if g.StartingStack == 0 {
			g.StartingStack = 200
		}
		if g.MaxPlayers == 0 {
			g.MaxPlayers = len(g.Seats)
		}
		if g.TurnClockSeconds == 0 {
			g.TurnClockSeconds = 30
		}
		if g.AITimeoutSeconds == 0 {
			g.AITimeoutSeconds = 15
		}
		if g.AckTimeoutMs == 0 {
			g.AckTimeoutMs = 3000
		}
		if g.IdleTimeoutSeconds == 0 {
			g.IdleTimeoutSeconds = 600
		}
	}
}

// Validate checks invariants a malformed HCL document could violate
// without tripping a decode error (e.g. a blind of zero).
func (r *Root) Validate() error {
	if r.Server.Address == "" {
		return fmt.Errorf("config: server address must not be empty")
	}
	if len(r.Games) == 0 {
		return fmt.Errorf("config: at least one game must be configured")
	}

	seen := make(map[string]bool)
	for _, g := range r.Games {
		if seen[g.Name] {
			return fmt.Errorf("config: duplicate game name %q", g.Name)
		}
		seen[g.Name] = true

		if g.SmallBlind <= 0 {
			return fmt.Errorf("config: game %q: small blind must be positive", g.Name)
		}
		if g.BigBlind <= g.SmallBlind {
			return fmt.Errorf("config: game %q: big blind must exceed small blind", g.Name)
		}
		if len(g.Seats) < 2 {
			return fmt.Errorf("config: game %q: at least two seats required", g.Name)
		}
		seatNumbers := make(map[int]bool)
		for _, seat := range g.Seats {
			if seatNumbers[seat.Seat] {
				return fmt.Errorf("config: game %q: duplicate seat %d", g.Name, seat.Seat)
			}
			seatNumbers[seat.Seat] = true
			if !seat.IsHuman && seat.Archetype == "" {
				return fmt.Errorf("config: game %q seat %d: AI seat requires an archetype", g.Name, seat.Seat)
			}
			if seat.IsHuman && seat.PlayerID == "" {
				return fmt.Errorf("config: game %q seat %d: human seat requires a player_id to connect with", g.Name, seat.Seat)
			}
		}
		seenPlayerIDs := make(map[string]bool)
		for _, seat := range g.Seats {
			if seat.PlayerID == "" {
				continue
			}
			if seenPlayerIDs[seat.PlayerID] {
				return fmt.Errorf("config: game %q: duplicate player_id %q", g.Name, seat.PlayerID)
			}
			seenPlayerIDs[seat.PlayerID] = true
		}
	}
	return nil
}
