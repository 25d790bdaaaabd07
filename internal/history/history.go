// Package history implements the append-only hand history recorder
// (spec §4.K): one JSON record per completed hand, in the export
// schema spec §6 documents (hand_id, started_at, seed, blinds, ante,
// button_seat, players, actions grouped by street, board, pots). It is
// grounded on the teacher's internal/server/hand_history package
// (Monitor/Manager split, buffered append, threshold-or-interval
// flush), adapted from its PHH file format to line-delimited JSON.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pokerlab/trainer/internal/adapters"
	"github.com/pokerlab/trainer/internal/hand"
	"github.com/pokerlab/trainer/internal/pot"
)

// Player is one seat's starting state and, if the hand reached
// showdown and the seat didn't fold first, its revealed hole cards.
type Player struct {
	Seat          int      `json:"seat"`
	PlayerID      string   `json:"player_id"`
	Name          string   `json:"name"`
	StartingStack int      `json:"starting_stack"`
	HoleCards     []string `json:"hole_cards,omitempty"`
}

// Action is one completed betting action, in hand order.
type Action struct {
	Street string `json:"street"`
	Seat   int    `json:"seat"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
	Forced bool   `json:"forced,omitempty"`
}

// PotAward is one pot layer's final award.
type PotAward struct {
	Amount      int    `json:"amount"`
	WinnerSeats []int  `json:"winner_seats"`
	HandRank    string `json:"hand_rank,omitempty"`
}

// Record is one completed hand in the export schema.
type Record struct {
	HandID     string    `json:"hand_id"`
	GameID     string    `json:"game_id"`
	StartedAt  time.Time `json:"started_at"`
	Seed       int64     `json:"seed"`
	SmallBlind int       `json:"small_blind"`
	BigBlind   int       `json:"big_blind"`
	Ante       int       `json:"ante"`
	ButtonSeat int       `json:"button_seat"`
	Players    []Player  `json:"players"`
	Actions    []Action  `json:"actions"`
	Board      []string  `json:"board"`
	Pots       []PotAward `json:"pots"`
}

// DefaultFlushEvery writes every hand as soon as it settles, matching
// spec §5's "the hand history log is append-only and written after
// Settled" — unlike the teacher's throughput-oriented batching, a
// training server completes hands far too slowly for buffering delay
// to matter.
const DefaultFlushEvery = 1

// Recorder accumulates one game's completed hands and appends them to
// a JSON-lines file. One Recorder per game, owned by the game's
// serialization point — not safe for concurrent Observe calls, though
// Flush and ReadAll may be called from other goroutines.
type Recorder struct {
	gameID     string
	outPath    string
	clock      adapters.Clock
	flushEvery int
	logger     zerolog.Logger

	mu      sync.Mutex
	buffer  []Record
	current *Record
	street  string
}

// New creates a Recorder that appends to <baseDir>/game-<gameID>/hands.jsonl.
func New(gameID, baseDir string, clock adapters.Clock, logger zerolog.Logger) (*Recorder, error) {
	dir := filepath.Join(baseDir, fmt.Sprintf("game-%s", gameID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &Recorder{
		gameID:     gameID,
		outPath:    filepath.Join(dir, "hands.jsonl"),
		clock:      clock,
		flushEvery: DefaultFlushEvery,
		logger:     logger.With().Str("component", "history").Str("game_id", gameID).Logger(),
	}, nil
}

// WithFlushEvery overrides how many buffered hands trigger an
// automatic flush when Observe finishes a hand on PotsAwarded.
func (r *Recorder) WithFlushEvery(n int) *Recorder {
	if n > 0 {
		r.flushEvery = n
	}
	return r
}

// OnHandStart begins a new record. seed is the deck seed the hand was
// dealt with, carried for reproducibility per spec §6's schema. Call
// before Hand.Start mutates chip stacks, so StartingStack reflects the
// pre-hand amount.
func (r *Recorder) OnHandStart(h *hand.Hand, seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]Player, len(h.Players))
	for i, p := range h.Players {
		players[i] = Player{Seat: p.Seat, PlayerID: string(p.ID), Name: p.Name, StartingStack: p.Chips}
	}
	r.current = &Record{
		HandID:     h.HandID,
		GameID:     r.gameID,
		StartedAt:  r.clock.Now(),
		Seed:       seed,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		Ante:       h.Ante,
		ButtonSeat: h.DealerSeat,
		Players:    players,
	}
	r.street = "PREFLOP"
}

// Observe appends the detail of one batch of hand.Event values (as
// produced by a single Apply/ApplyForced/Start call) to the open
// record, finalizing and buffering it on PotsAwarded.
func (r *Recorder) Observe(h *hand.Hand, events []hand.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}

	for _, e := range events {
		switch ev := e.(type) {
		case hand.ActionApplied:
			r.current.Actions = append(r.current.Actions, Action{
				Street: r.street,
				Seat:   ev.Seat,
				Action: ev.Kind.String(),
				Amount: ev.Amount,
				Forced: ev.Forced,
			})

		case hand.StreetAdvanced:
			r.street = streetName(ev.Phase)
			for _, c := range ev.Cards {
				r.current.Board = append(r.current.Board, c.String())
			}

		case hand.Showdown:
			for i, p := range h.Players {
				if _, revealed := ev.Hands[p.ID]; revealed {
					cards := make([]string, len(p.HoleCards))
					for j, c := range p.HoleCards {
						cards[j] = c.String()
					}
					r.current.Players[i].HoleCards = cards
				}
			}

		case hand.PotsAwarded:
			r.current.Pots = awardsFor(h, ev)
			r.finishLocked()
		}
	}
}

func (r *Recorder) finishLocked() {
	if r.current == nil {
		return
	}
	r.buffer = append(r.buffer, *r.current)
	r.current = nil
	r.street = ""

	if r.flushEvery > 0 && len(r.buffer) >= r.flushEvery {
		if err := r.flushLocked(); err != nil {
			r.logger.Error().Err(err).Msg("hand history flush failed")
		}
	}
}

// Flush writes any buffered records to disk.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.buffer) == 0 {
		return nil
	}
	file, err := os.OpenFile(r.outPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, rec := range r.buffer {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	r.buffer = r.buffer[:0]
	return nil
}

// ReadAll reads every flushed record for this game back from disk, in
// the order they were written, for the hand history export surface.
func (r *Recorder) ReadAll() ([]Record, error) {
	file, err := os.Open(r.outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var out []Record
	dec := json.NewDecoder(bufio.NewReader(file))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func streetName(p hand.Phase) string {
	switch p {
	case hand.Flop:
		return "FLOP"
	case hand.Turn:
		return "TURN"
	case hand.River:
		return "RIVER"
	default:
		return p.String()
	}
}

func awardsFor(h *hand.Hand, ev hand.PotsAwarded) []PotAward {
	awards := make([]PotAward, len(ev.Layers))
	for i, layer := range ev.Layers {
		var seats []int
		for _, id := range ev.Winners[i] {
			if seat, ok := seatFor(h, id); ok {
				seats = append(seats, seat)
			}
		}
		awards[i] = PotAward{Amount: layer.Amount, WinnerSeats: seats}
	}
	return awards
}

func seatFor(h *hand.Hand, id pot.PlayerID) (int, bool) {
	for _, p := range h.Players {
		if p.ID == id {
			return p.Seat, true
		}
	}
	return 0, false
}
