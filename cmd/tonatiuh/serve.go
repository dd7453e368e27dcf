package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mitchelldurbincs/tonatiuh/internal/config"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/grpc/oracleserver"
	"github.com/mitchelldurbincs/tonatiuh/internal/monitoring"
)

func newServeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the gRPC move oracle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "listen host (default: server.host)"},
			&cli.IntFlag{Name: "port", Usage: "listen port (default: server.port)"},
			&cli.IntFlag{Name: "max-games", Value: -1, Usage: "maximum hosted games, 0 for unlimited (default: server.max_games)"},
			&cli.BoolFlag{Name: "enable-reflection", Usage: "enable gRPC reflection for debugging"},
			&cli.StringFlag{Name: "telemetry", Usage: "websocket listen address for game events (default: telemetry.addr)"},
			&cli.BoolFlag{Name: "watch-config", Usage: "reload the log level when the config file changes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c := *a.cfg()
			cfg := &c
			if s := cmd.String("host"); s != "" {
				cfg.Server.Host = s
			}
			if p := int(cmd.Int("port")); p > 0 {
				cfg.Server.Port = p
			}
			if n := int(cmd.Int("max-games")); n >= 0 {
				cfg.Server.MaxGames = n
			}
			if cmd.Bool("enable-reflection") {
				cfg.Server.EnableReflection = true
			}
			if s := cmd.String("telemetry"); s != "" {
				cfg.Telemetry.Addr = s
			}
			if cmd.Bool("watch-config") {
				a.watchConfig()
			}
			return a.serve(ctx, cfg)
		},
	}
}

func (a *app) serve(ctx context.Context, cfg *config.Config) error {
	logger := a.logger

	registry, err := a.newRegistry(cfg, false)
	if err != nil {
		return err
	}
	if !registry.Has(cfg.Server.DefaultBot) {
		return fmt.Errorf("server.default_bot %q is not a known bot, known: %v", cfg.Server.DefaultBot, registry.Names())
	}

	logger.Info().
		Str("address", cfg.Server.Addr()).
		Str("default_bot", cfg.Server.DefaultBot).
		Int("max_games", cfg.Server.MaxGames).
		Msg("Starting oracle server")

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewEventBus(logger)
	bus.Subscribe(events.NewLogSubscriber("serve-log", logger, events.TypeGameStarted, events.TypeGameEnded))
	telemetryDone, err := a.startTelemetry(ctx, cfg.Telemetry, bus)
	if err != nil {
		_ = lis.Close()
		return err
	}

	oracle := oracleserver.NewServer(oracleserver.Config{
		Width:      cfg.Game.Width,
		Height:     cfg.Game.Height,
		DefaultBot: cfg.Server.DefaultBot,
		Rewards:    cfg.Rewards,
		Draw:       cfg.DrawConfig(),
		Manager:    oracleserver.ManagerConfig{MaxGames: cfg.Server.MaxGames},
	}, registry, bus, logger)

	grpcServer := grpc.NewServer(oracleserver.ServerOptions(logger)...)
	healthServer := oracle.Register(grpcServer, cfg.Server.EnableReflection)

	go oracle.Sessions().RunCleanup(ctx, 0)

	monitor := monitoring.NewMonitor(monitoring.Config{}, logger)
	monitor.Track("sessions", oracle.Sessions().Count)
	monitor.Track("subscribers", bus.SubscriberCount)
	go monitor.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case err = <-serveErr:
		logger.Error().Err(err).Msg("gRPC server stopped")
	case <-ctx.Done():
		logger.Info().Msg("Received shutdown signal")

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(oracleserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		// Give ongoing requests time to complete
		time.Sleep(time.Duration(cfg.Server.GracefulShutdownDelay) * time.Second)

		logger.Info().Msg("Gracefully stopping gRPC server")
		grpcServer.GracefulStop()
		if serr := <-serveErr; serr != nil && !errors.Is(serr, grpc.ErrServerStopped) {
			err = serr
		}
	}

	cancel()
	if terr := <-telemetryDone; terr != nil {
		logger.Error().Err(terr).Msg("Telemetry server failed")
	}
	logger.Info().Int("sessions", oracle.Sessions().Count()).Msg("Server shutdown complete")
	return err
}

// watchConfig applies log level changes from the config file while running.
func (a *app) watchConfig() {
	if a.loader.ConfigFilePath() == "" {
		a.logger.Warn().Msg("No config file loaded, nothing to watch")
		return
	}
	a.loader.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Error().Err(err).Msg("Config reload failed, keeping previous config")
			return
		}
		level, perr := zerolog.ParseLevel(cfg.Server.LogLevel)
		if perr != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		a.logger.Info().Str("log_level", level.String()).Msg("Config reloaded")
	})
}
