package events

import "github.com/rs/zerolog"

// LogSubscriber writes every event it is interested in to a zerolog logger. Training
// runs use it at Info for episode summaries and Debug for moves.
type LogSubscriber struct {
	id     string
	types  map[string]bool
	logger zerolog.Logger
}

// NewLogSubscriber logs the given event types, or all of them when none are given.
func NewLogSubscriber(id string, logger zerolog.Logger, eventTypes ...string) *LogSubscriber {
	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	return &LogSubscriber{
		id:     id,
		types:  types,
		logger: logger.With().Str("component", "event_log").Logger(),
	}
}

func (s *LogSubscriber) ID() string { return s.id }

func (s *LogSubscriber) InterestedIn(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

func (s *LogSubscriber) HandleEvent(e Event) {
	switch ev := e.(type) {
	case *MoveAppliedEvent:
		s.logger.Debug().
			Str("game_id", ev.Game).
			Str("player", ev.Metadata.Player).
			Int("round", ev.Metadata.Round).
			Str("move", ev.Move).
			Int("reward", ev.Reward).
			Int("hops", ev.Hops).
			Msg("Move applied")
	case *PieceDestroyedEvent:
		s.logger.Debug().
			Str("game_id", ev.Game).
			Str("piece", ev.Piece).
			Int("x", ev.X).
			Int("y", ev.Y).
			Msg("Piece destroyed")
	case *GameEndedEvent:
		s.logger.Info().
			Str("game_id", ev.Game).
			Str("winner", ev.Winner).
			Bool("draw", ev.Draw).
			Int("rounds", ev.Rounds).
			Dur("duration", ev.Duration).
			Msg("Game ended")
	case *EpisodeCompletedEvent:
		s.logger.Info().
			Str("run_id", ev.Game).
			Int("episode", ev.Episode).
			Str("outcome", ev.Outcome).
			Int("steps", ev.Steps).
			Float64("total_reward", ev.TotalReward).
			Float64("epsilon", ev.Epsilon).
			Float64("loss", ev.Loss).
			Msg("Episode completed")
	case *TrainingStoppedEvent:
		l := s.logger.Info()
		if ev.Error != "" {
			l = s.logger.Error().Str("error", ev.Error)
		}
		l.Str("run_id", ev.Game).
			Int("episodes", ev.Episodes).
			Int("wins", ev.Wins).
			Int("draws", ev.Draws).
			Int("losses", ev.Losses).
			Msg("Training stopped")
	default:
		s.logger.Debug().
			Str("event_type", e.Type()).
			Str("game_id", e.GameID()).
			Msg("Event")
	}
}
