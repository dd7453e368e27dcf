package states

import (
	"fmt"
	"time"
)

// IdleState is the resting phase between runs. Entering it clears the previous run.
type IdleState struct{}

func NewIdleState() State { return &IdleState{} }

func (s *IdleState) Phase() Phase { return PhaseIdle }

func (s *IdleState) Enter(ctx *TrainingContext) error {
	ctx.Logger.Debug().Msg("Entering Idle state")
	ctx.reset()
	return nil
}

func (s *IdleState) Exit(ctx *TrainingContext) error {
	ctx.Logger.Debug().Msg("Exiting Idle state")
	return nil
}

func (s *IdleState) Validate(ctx *TrainingContext) error { return nil }

// PreparingState sets up the next episode
type PreparingState struct{}

func NewPreparingState() State { return &PreparingState{} }

func (s *PreparingState) Phase() Phase { return PhasePreparing }

func (s *PreparingState) Enter(ctx *TrainingContext) error {
	if ctx.StartTime.IsZero() {
		ctx.StartTime = time.Now()
		ctx.Logger.Info().
			Int("total_episodes", ctx.TotalEpisodes).
			Float64("epsilon", ctx.Epsilon).
			Msg("Training started")
	}
	ctx.Logger.Debug().Int("episode", ctx.Episode).Msg("Preparing episode")
	return nil
}

func (s *PreparingState) Exit(ctx *TrainingContext) error { return nil }

func (s *PreparingState) Validate(ctx *TrainingContext) error {
	if ctx.TotalEpisodes < 1 {
		return fmt.Errorf("total episodes must be at least 1, got %d", ctx.TotalEpisodes)
	}
	if !ctx.EpisodesLeft() {
		return fmt.Errorf("no episodes left: %d of %d played", ctx.Episode, ctx.TotalEpisodes)
	}
	return nil
}

// RunningState steps the current episode
type RunningState struct{}

func NewRunningState() State { return &RunningState{} }

func (s *RunningState) Phase() Phase { return PhaseRunning }

func (s *RunningState) Enter(ctx *TrainingContext) error {
	ctx.Logger.Debug().Int("episode", ctx.Episode).Msg("Episode running")
	return nil
}

func (s *RunningState) Exit(ctx *TrainingContext) error { return nil }

func (s *RunningState) Validate(ctx *TrainingContext) error { return nil }

// EpisodeCompleteState closes an episode and advances the episode counter
type EpisodeCompleteState struct{}

func NewEpisodeCompleteState() State { return &EpisodeCompleteState{} }

func (s *EpisodeCompleteState) Phase() Phase { return PhaseEpisodeComplete }

func (s *EpisodeCompleteState) Enter(ctx *TrainingContext) error {
	ctx.Episode++
	ctx.Logger.Debug().
		Int("episodes_played", ctx.Episode).
		Int("wins", ctx.Wins).
		Int("draws", ctx.Draws).
		Int("losses", ctx.Losses).
		Msg("Episode complete")
	return nil
}

func (s *EpisodeCompleteState) Exit(ctx *TrainingContext) error { return nil }

func (s *EpisodeCompleteState) Validate(ctx *TrainingContext) error { return nil }

// StoppedState is reached once the run ends without error
type StoppedState struct{}

func NewStoppedState() State { return &StoppedState{} }

func (s *StoppedState) Phase() Phase { return PhaseStopped }

func (s *StoppedState) Enter(ctx *TrainingContext) error {
	ctx.Logger.Info().
		Int("episodes", ctx.Episode).
		Int("wins", ctx.Wins).
		Int("draws", ctx.Draws).
		Int("losses", ctx.Losses).
		Dur("elapsed", ctx.Elapsed()).
		Msg("Training stopped")
	return nil
}

func (s *StoppedState) Exit(ctx *TrainingContext) error { return nil }

func (s *StoppedState) Validate(ctx *TrainingContext) error { return nil }

// ErrorState holds a failed run until it is reset
type ErrorState struct{}

func NewErrorState() State { return &ErrorState{} }

func (s *ErrorState) Phase() Phase { return PhaseError }

func (s *ErrorState) Enter(ctx *TrainingContext) error {
	ctx.Logger.Error().
		Err(ctx.Error).
		Int("episode", ctx.Episode).
		Msg("Training entered error state")
	return nil
}

func (s *ErrorState) Exit(ctx *TrainingContext) error {
	ctx.Logger.Info().Msg("Recovering from error state")
	ctx.Error = nil
	return nil
}

func (s *ErrorState) Validate(ctx *TrainingContext) error {
	if ctx.Error == nil {
		return fmt.Errorf("error state requires an error in context")
	}
	return nil
}
