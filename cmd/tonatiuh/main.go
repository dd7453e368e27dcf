// Command tonatiuh plays, trains and serves the light-ray strategy game.
//
// Subcommands:
//
//	play      run bot-versus-bot games and print the boards
//	train     train the learned "dqn" bot against an opponent and save the model
//	serve     run the gRPC move oracle, optionally with a websocket event stream
//	notation  check a position string and describe it
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/tonatiuh/internal/config"
)

const appName = "tonatiuh"

// app carries what the root command's Before hook prepares for the subcommands.
type app struct {
	loader *config.Loader
	logger zerolog.Logger
}

func (a *app) cfg() *config.Config { return a.loader.Config() }

func main() {
	// A missing .env is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCommand(a).Run(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  appName,
		Usage: "light-ray strategy game engine, bots and trainer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (default: config.yaml in ., ./config or /etc/tonatiuh)",
				Sources: cli.EnvVars("TON_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "merge config.<env>.yaml over the base config",
				Sources: cli.EnvVars("APP_ENV"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (default: server.log_level)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			loader, err := config.NewLoader(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			if env := cmd.String("env"); env != "" {
				if err := loader.LoadEnvironmentConfig(env); err != nil {
					return ctx, err
				}
			}
			a.loader = loader

			level := cmd.String("log-level")
			if level == "" {
				level = loader.Config().Server.LogLevel
			}
			a.logger = setupLogging(level, loader.Config().Server.LogFormat)
			if path := loader.ConfigFilePath(); path != "" {
				a.logger.Debug().Str("path", path).Msg("Loaded config file")
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			newPlayCommand(a),
			newTrainCommand(a),
			newServeCommand(a),
			newNotationCommand(a),
		},
	}
}
