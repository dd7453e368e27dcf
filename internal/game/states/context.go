package states

import (
	"time"

	"github.com/rs/zerolog"
)

// TrainingContext is the data the lifecycle states read and update
type TrainingContext struct {
	// RunID uniquely identifies this training run
	RunID string

	Logger zerolog.Logger

	// TotalEpisodes is the number of episodes requested by train
	TotalEpisodes int

	// Episode is the zero-based index of the current episode
	Episode int

	Epsilon float64

	// StartTime is when the first episode was prepared
	StartTime time.Time

	Wins, Draws, Losses int

	// Error holds the failure that moved the run to PhaseError
	Error error

	// Metadata for custom state data
	Metadata map[string]any
}

func NewTrainingContext(runID string, logger zerolog.Logger) *TrainingContext {
	return &TrainingContext{
		RunID:    runID,
		Logger:   logger.With().Str("run_id", runID).Logger(),
		Metadata: make(map[string]any),
	}
}

// EpisodesLeft reports whether another episode may be prepared
func (tc *TrainingContext) EpisodesLeft() bool {
	return tc.Episode < tc.TotalEpisodes
}

// Elapsed returns the time since the first episode was prepared
func (tc *TrainingContext) Elapsed() time.Duration {
	if tc.StartTime.IsZero() {
		return 0
	}
	return time.Since(tc.StartTime)
}

func (tc *TrainingContext) SetMetadata(key string, value any) {
	tc.Metadata[key] = value
}

func (tc *TrainingContext) GetMetadata(key string) (any, bool) {
	val, exists := tc.Metadata[key]
	return val, exists
}

// reset clears the per-run counters, keeping the ID and logger
func (tc *TrainingContext) reset() {
	tc.TotalEpisodes = 0
	tc.Episode = 0
	tc.Epsilon = 0
	tc.StartTime = time.Time{}
	tc.Wins, tc.Draws, tc.Losses = 0, 0, 0
	tc.Error = nil
	clear(tc.Metadata)
}
