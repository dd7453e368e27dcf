package rules

import (
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
)

const (
	DefaultRepetitionLimit = 3
	DefaultMaxPlies        = 500
)

// Winner returns the only player that still has a King. ok is false while both Kings
// stand; a board without any King has no winner either.
func Winner(b *core.Board) (core.Owner, bool) {
	a := b.Count(core.Camaxtli, core.King) > 0
	n := b.Count(core.Nanahuatzin, core.King) > 0
	switch {
	case a && !n:
		return core.Camaxtli, true
	case n && !a:
		return core.Nanahuatzin, true
	}
	return core.OwnerNone, false
}

// WinConditionChecker handles game over detection and winner determination
type WinConditionChecker struct {
	logger zerolog.Logger
}

func NewWinConditionChecker(logger zerolog.Logger) *WinConditionChecker {
	return &WinConditionChecker{
		logger: logger.With().Str("component", "WinConditionChecker").Logger(),
	}
}

// CheckGameOver reports whether a King has fallen and, if so, who won.
func (wc *WinConditionChecker) CheckGameOver(b *core.Board) (bool, core.Owner) {
	winner, ok := Winner(b)
	if ok {
		wc.logger.Info().Str("winner", winner.String()).Msg("Winner determined")
	} else {
		wc.logger.Debug().Msg("Both kings standing")
	}
	return ok, winner
}

// DrawConfig bounds a game. Zero fields take the defaults.
type DrawConfig struct {
	RepetitionLimit int
	// MaxPlies caps the number of single moves, counting both sides.
	MaxPlies int
}

func (c DrawConfig) withDefaults() DrawConfig {
	if c.RepetitionLimit <= 0 {
		c.RepetitionLimit = DefaultRepetitionLimit
	}
	if c.MaxPlies <= 0 {
		c.MaxPlies = DefaultMaxPlies
	}
	return c
}

// DrawDetector counts committed positions by their notation string. A game is drawn
// once a position with the same side to move has been committed RepetitionLimit times,
// or once MaxPlies positions have been committed in total.
type DrawDetector struct {
	cfg   DrawConfig
	seen  map[string]int
	plies int
}

func NewDrawDetector(cfg DrawConfig) *DrawDetector {
	return &DrawDetector{cfg: cfg.withDefaults(), seen: make(map[string]int)}
}

// Commit records the position and reports whether it completes a draw.
func (d *DrawDetector) Commit(b *core.Board, next core.Owner) bool {
	_, draw := d.Push(b, next)
	return draw
}

// Preview reports whether committing the position would complete a draw without
// recording it. Search uses this on hypothetical positions.
func (d *DrawDetector) Preview(b *core.Board, next core.Owner) bool {
	key := notation.Encode(b, next)
	return d.seen[key]+1 >= d.cfg.RepetitionLimit || d.plies+1 >= d.cfg.MaxPlies
}

// Push commits the position like Commit and returns its key for Pop. Search pushes
// the positions along the line it is exploring.
func (d *DrawDetector) Push(b *core.Board, next core.Owner) (string, bool) {
	key := notation.Encode(b, next)
	d.seen[key]++
	d.plies++
	return key, d.seen[key] >= d.cfg.RepetitionLimit || d.plies >= d.cfg.MaxPlies
}

// Pop undoes the Push that returned key.
func (d *DrawDetector) Pop(key string) {
	if d.seen[key] <= 1 {
		delete(d.seen, key)
	} else {
		d.seen[key]--
	}
	d.plies--
}

// Occurrences returns how many times the position has been committed.
func (d *DrawDetector) Occurrences(b *core.Board, next core.Owner) int {
	return d.seen[notation.Encode(b, next)]
}

// Plies returns how many positions have been committed.
func (d *DrawDetector) Plies() int { return d.plies }

func (d *DrawDetector) Reset() {
	d.seen = make(map[string]int)
	d.plies = 0
}

// Clone returns an independent copy, for search branches that commit speculatively.
func (d *DrawDetector) Clone() *DrawDetector {
	c := &DrawDetector{cfg: d.cfg, seen: make(map[string]int, len(d.seen)), plies: d.plies}
	for k, v := range d.seen {
		c.seen[k] = v
	}
	return c
}
