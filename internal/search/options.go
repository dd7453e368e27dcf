package search

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownVariant = errors.New("unknown search variant")

// DefaultTimeBudget bounds one iterative-deepening search.
const DefaultTimeBudget = 2000 * time.Millisecond

// Weights scale the static evaluation terms.
type Weights struct {
	// Hop is paid per segment of the mover's ray: positive for the searcher's own
	// shots, negative for the opponent's.
	Hop int `mapstructure:"hop"`
	// BackRankKing is paid when a King stands on its home rank.
	BackRankKing int `mapstructure:"back_rank_king"`
	// KingNeighbour is paid per friendly piece on the eight cells around a King.
	KingNeighbour int `mapstructure:"king_neighbour"`
	// Flank is paid when exactly one piece of a side stands on its far file.
	Flank int `mapstructure:"flank"`
}

func DefaultWeights() Weights {
	return Weights{Hop: 5, BackRankKing: 50, KingNeighbour: 10, Flank: 30}
}

// Options switch the search techniques on one at a time. Variant returns the presets.
type Options struct {
	// Depth is the number of plies searched. With IterativeDeepening it caps the
	// deepest pass attempted.
	Depth              int
	Pruning            bool
	IterativeDeepening bool
	// TimeBudget applies to iterative deepening only; zero means no limit.
	TimeBudget time.Duration
	// PerPieceOrdering generates moves piece by piece below the root so a cutoff
	// skips the generation of the remaining pieces.
	PerPieceOrdering bool
	// Heuristic adds the static evaluation at non-terminal leaves.
	Heuristic bool
	// JitterMax bounds the random amount added to each static evaluation. The amount is
	// drawn once per search and position, so pruning never changes the search value.
	JitterMax int
	Weights   Weights
}

// Variant returns the preset for variants 1 to 5. Each adds one technique to the
// previous one: plain minimax, alpha-beta, iterative deepening, per-piece move
// generation, static evaluation.
func Variant(n int) (Options, error) {
	opts := Options{Depth: 1, Weights: DefaultWeights()}
	switch n {
	case 5:
		opts.Heuristic = true
		opts.JitterMax = 100
		fallthrough
	case 4:
		opts.PerPieceOrdering = true
		fallthrough
	case 3:
		opts.IterativeDeepening = true
		opts.TimeBudget = DefaultTimeBudget
		opts.Depth = 8
		fallthrough
	case 2:
		opts.Pruning = true
		if opts.Depth < 3 {
			opts.Depth = 3
		}
		fallthrough
	case 1:
		return opts, nil
	}
	return Options{}, fmt.Errorf("%w: %d", ErrUnknownVariant, n)
}

// MustVariant is Variant for compile-time constants.
func MustVariant(n int) Options {
	opts, err := Variant(n)
	if err != nil {
		panic(err)
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.Depth < 1 {
		o.Depth = 1
	}
	if o.JitterMax < 0 {
		o.JitterMax = 0
	}
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights()
	}
	return o
}
