package learning

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/common"
)

// EpsilonSchedule decays the exploration rate multiplicatively once per episode.
type EpsilonSchedule struct {
	Start float64 `mapstructure:"start"`
	Min   float64 `mapstructure:"min"`
	Decay float64 `mapstructure:"decay"`
}

func DefaultEpsilonSchedule() EpsilonSchedule {
	return EpsilonSchedule{Start: 1.0, Min: 0.05, Decay: 0.995}
}

func (s EpsilonSchedule) Validate() error {
	if s.Min < 0 || s.Min > 1 {
		return fmt.Errorf("epsilon min %v outside [0,1]", s.Min)
	}
	if s.Start < s.Min || s.Start > 1 {
		return fmt.Errorf("epsilon start %v outside [min,1]", s.Start)
	}
	if s.Decay <= 0 || s.Decay > 1 {
		return fmt.Errorf("epsilon decay %v outside (0,1]", s.Decay)
	}
	return nil
}

// Next returns the rate for the following episode.
func (s EpsilonSchedule) Next(eps float64) float64 {
	return math.Max(s.Min, eps*s.Decay)
}

// SelectAction picks an action index among legal. With probability eps it explores
// uniformly; otherwise it takes the highest q value, choosing uniformly among ties.
func SelectAction(rng *rand.Rand, q []float32, legal []int, eps float64) (int, bool, error) {
	if len(legal) == 0 {
		return 0, false, fmt.Errorf("no legal actions")
	}
	if rng.Float64() < eps {
		return legal[rng.Intn(len(legal))], true, nil
	}
	action, err := greedyAction(rng, q, legal)
	return action, false, err
}

func greedyAction(rng *rand.Rand, q []float32, legal []int) (int, error) {
	values := make([]float32, len(legal))
	for i, a := range legal {
		if a < 0 || a >= len(q) {
			return 0, fmt.Errorf("action %d outside %d values: %w", a, len(q), ErrShapeMismatch)
		}
		values[i] = q[a]
	}
	best := common.ArgMaxes(values)
	if len(best) == 1 || rng == nil {
		return legal[best[0]], nil
	}
	return legal[best[rng.Intn(len(best))]], nil
}

// maxLegal is max over legal of q; zero when legal is empty.
func maxLegal(q []float32, legal []int) float32 {
	if len(legal) == 0 {
		return 0
	}
	best := float32(math.Inf(-1))
	for _, a := range legal {
		if a >= 0 && a < len(q) && q[a] > best {
			best = q[a]
		}
	}
	return best
}
