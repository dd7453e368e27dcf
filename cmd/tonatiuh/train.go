package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/config"
	"github.com/mitchelldurbincs/tonatiuh/internal/experience"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
	"github.com/mitchelldurbincs/tonatiuh/internal/learning"
	"github.com/mitchelldurbincs/tonatiuh/internal/telemetry"
)

func newTrainCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "train the dqn bot and save its model",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "episodes", Usage: "episodes to play (default: learning.episodes)"},
			&cli.StringFlag{Name: "opponent", Usage: "safe_random or a bot name (default: learning.opponent)"},
			&cli.StringFlag{Name: "model", Usage: "model file to write (default: learning.model_path)"},
			&cli.BoolFlag{Name: "resume", Usage: "continue from the existing model file"},
			&cli.StringFlag{Name: "telemetry", Usage: "websocket listen address for training events (default: telemetry.addr)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c := *a.cfg()
			cfg := &c
			if n := int(cmd.Int("episodes")); n > 0 {
				cfg.Learning.Episodes = n
			}
			if s := cmd.String("opponent"); s != "" {
				cfg.Learning.Opponent = s
			}
			if s := cmd.String("model"); s != "" {
				cfg.Learning.ModelPath = s
			}
			if s := cmd.String("telemetry"); s != "" {
				cfg.Telemetry.Addr = s
			}
			return a.train(ctx, cfg, cmd.Bool("resume"))
		},
	}
}

func (a *app) train(ctx context.Context, cfg *config.Config, resume bool) error {
	logger := a.logger.With().Str("component", "train").Logger()

	seed := cfg.Learning.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(seed))

	w, h := cfg.Game.Width, cfg.Game.Height
	inputs, actions := experience.TensorSize(w, h), rules.NewActionSpace(w, h).Size()
	online := learning.NewLinearApproximator(inputs, actions, cfg.Learning.LearningRate, rng)
	target := learning.NewLinearApproximator(inputs, actions, cfg.Learning.LearningRate, rng)
	if resume {
		err := learning.LoadModel(online, cfg.Learning.ModelPath)
		switch {
		case err == nil:
			logger.Info().Str("path", cfg.Learning.ModelPath).Msg("Resuming from saved model")
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn().Str("path", cfg.Learning.ModelPath).Msg("No model to resume from, starting fresh")
		default:
			return err
		}
	}

	registry, err := a.newRegistry(cfg, true)
	if err != nil {
		return err
	}
	opponent, err := a.newOpponent(cfg, registry, rng)
	if err != nil {
		return err
	}

	persistence, err := experience.NewPersistenceLayer(cfg.PersistenceConfig(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := persistence.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close experience persistence")
		}
	}()

	bus := events.NewEventBus(logger)
	bus.Subscribe(events.NewLogSubscriber("train-log", logger,
		events.TypeEpisodeCompleted, events.TypeTrainingStopped, events.TypeStateTransition))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	telemetryDone, err := a.startTelemetry(ctx, cfg.Telemetry, bus)
	if err != nil {
		return err
	}

	tcfg := cfg.TrainerConfig()
	tcfg.Persistence = persistence
	trainer, err := learning.NewTrainer(tcfg, online, target, opponent, bus, rng, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Int("episodes", cfg.Learning.Episodes).
		Str("opponent", cfg.Learning.Opponent).
		Str("run_id", trainer.Config().RunID).
		Msg("Training started")

	stats, trainErr := trainer.Train(ctx, cfg.Learning.Episodes, cfg.Learning.Epsilon.Start)

	// A cancelled run still saves what it learned.
	if err := learning.SaveModel(online, cfg.Learning.ModelPath); err != nil {
		return errors.Join(trainErr, err)
	}
	logger.Info().
		Int("episodes", stats.Episodes).
		Int("wins", stats.Wins).
		Int("draws", stats.Draws).
		Int("losses", stats.Losses).
		Int("updates", stats.Updates).
		Float64("epsilon", stats.Epsilon).
		Float64("mean_loss", stats.MeanLoss).
		Int64("buffer_clears", stats.BufferClears).
		Dur("duration", stats.Duration).
		Str("model", cfg.Learning.ModelPath).
		Msg("Training finished")

	cancel()
	if err := <-telemetryDone; err != nil {
		logger.Error().Err(err).Msg("Telemetry server failed")
	}
	return trainErr
}

// startTelemetry serves the websocket event stream when cfg.Addr is set and
// subscribes it to bus. The returned channel yields the server's result after ctx is
// done; it yields nil at once when telemetry is disabled.
func (a *app) startTelemetry(ctx context.Context, cfg config.TelemetryConfig, bus *events.EventBus) (<-chan error, error) {
	done := make(chan error, 1)
	if cfg.Addr == "" {
		done <- nil
		return done, nil
	}
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry listen on %s: %w", cfg.Addr, err)
	}
	hub := telemetry.NewHub(a.logger)
	bus.Subscribe(hub)
	go func() { done <- telemetry.Serve(ctx, lis, hub, cfg.Path) }()
	return done, nil
}
