package experience

import (
	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
)

// RewardConfig holds configurable reward values for the learner. The game's own
// reward table supplies everything else.
type RewardConfig struct {
	// Draw replaces the game's draw reward when an episode ends drawn.
	Draw float32
	// RoundIncrement is added to every step.
	RoundIncrement float32
	// Scale multiplies the final reward so targets stay in a range the approximator
	// can fit.
	Scale float32
}

// DefaultRewardConfig returns the default reward configuration
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Draw:           float32(game.DefaultRewards().LearningDraw),
		RoundIncrement: 0,
		Scale:          0.001,
	}
}

// Step is what happened between two trainee decisions: the trainee's move and, unless
// that move ended the game, the opponent's reply.
type Step struct {
	Own   game.Outcome
	Reply *game.Outcome
	// Draw is set when the repetition history or the round cap ended the game.
	Draw bool
}

// Terminal reports whether the game ended during the step.
func (s Step) Terminal() bool {
	if s.Draw || s.Own.Terminal() {
		return true
	}
	return s.Reply != nil && s.Reply.Terminal()
}

// CalculateReward computes the trainee's reward for one step: its own move reward plus
// the negated reward of the reply.
func CalculateReward(trainee core.Owner, s Step, config RewardConfig) float32 {
	scale := config.Scale
	if scale == 0 {
		scale = 1
	}
	if s.Draw {
		return (config.Draw + config.RoundIncrement) * scale
	}

	reward := float32(s.Own.RewardFor(trainee))
	if s.Reply != nil {
		reward += float32(s.Reply.RewardFor(trainee))
	}
	reward += config.RoundIncrement
	return reward * scale
}
