package main

import (
	"errors"
	"io/fs"

	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/config"
	"github.com/mitchelldurbincs/tonatiuh/internal/learning"
	"github.com/mitchelldurbincs/tonatiuh/internal/search"
)

// newRegistry builds the bot registry from the config. The "dqn" bot is registered
// when the model file at learning.model_path loads.
func (a *app) newRegistry(cfg *config.Config, training bool) (*search.Registry, error) {
	registry := search.NewRegistry(cfg.RegistryConfig(training), a.logger)

	agent, err := learning.LoadAgent(cfg.Learning.ModelPath, nil)
	switch {
	case err == nil:
		model := agent.Model()
		registry.Register(search.BotDQN, func(rng *rand.Rand) search.Policy {
			return learning.NewAgent(model, rng)
		})
		a.logger.Info().Str("path", cfg.Learning.ModelPath).Msg("Registered dqn bot")
	case errors.Is(err, fs.ErrNotExist):
		a.logger.Debug().Str("path", cfg.Learning.ModelPath).Msg("No model file, dqn bot unavailable")
	default:
		return nil, err
	}
	return registry, nil
}

// newOpponent builds the trainer's opponent: "safe_random" or any registry bot.
func (a *app) newOpponent(cfg *config.Config, registry *search.Registry, rng *rand.Rand) (search.Policy, error) {
	if cfg.Learning.Opponent == "safe_random" {
		return learning.NewSafeRandomOpponent(cfg.Rewards, rng), nil
	}
	if !registry.Has(cfg.Learning.Opponent) {
		return nil, errors.New("unknown opponent " + cfg.Learning.Opponent + ", want safe_random or one of the registry bots")
	}
	return registry.Build(cfg.Learning.Opponent), nil
}
