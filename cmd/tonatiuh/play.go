package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/search"
)

func newPlayCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "play bot-versus-bot games",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "a", Usage: "bot playing Camaxtli (default: server.default_bot)"},
			&cli.StringFlag{Name: "b", Value: search.BotRandom, Usage: "bot playing Nanahuatzin"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "number of games"},
			&cli.StringFlag{Name: "position", Usage: "starting position in notation (default: game.initial_position)"},
			&cli.IntFlag{Name: "show-every", Value: 0, Usage: "print the board every N rounds; 0 prints the final board only"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := a.cfg()
			bots := [2]string{cmd.String("a"), cmd.String("b")}
			if bots[0] == "" {
				bots[0] = cfg.Server.DefaultBot
			}
			position := cmd.String("position")
			if position == "" {
				position = cfg.Game.InitialPosition
			}

			registry, err := a.newRegistry(cfg, false)
			if err != nil {
				return err
			}
			for _, name := range bots {
				if !registry.Has(name) {
					return fmt.Errorf("unknown bot %q, known: %v", name, registry.Names())
				}
			}

			bus := events.NewEventBus(a.logger)
			bus.Subscribe(events.NewLogSubscriber("play-log", a.logger, events.TypeGameEnded))

			var tally [3]int // Camaxtli wins, Nanahuatzin wins, draws
			games := int(cmd.Int("games"))
			for i := 0; i < games; i++ {
				if err := ctx.Err(); err != nil {
					break
				}
				players := [2]search.Policy{registry.Build(bots[0]), registry.Build(bots[1])}
				st, err := playGame(ctx, os.Stdout, game.GameConfig{
					Width:     cfg.Game.Width,
					Height:    cfg.Game.Height,
					Position:  position,
					Rewards:   cfg.Rewards,
					Draw:      cfg.DrawConfig(),
					Publisher: bus,
					Logger:    a.logger,
				}, players, int(cmd.Int("show-every")))
				if err != nil {
					return err
				}
				switch {
				case st.IsDraw:
					tally[2]++
				case st.Winner == core.Camaxtli:
					tally[0]++
				case st.Winner == core.Nanahuatzin:
					tally[1]++
				}
			}

			fmt.Printf("%s (Camaxtli) %d - %d %s (Nanahuatzin), %d draws\n",
				bots[0], tally[0], tally[1], bots[1], tally[2])
			return nil
		},
	}
}

// playGame runs one game to the end. players[0] plays Camaxtli.
func playGame(ctx context.Context, w io.Writer, cfg game.GameConfig, players [2]search.Policy, showEvery int) (game.Status, error) {
	e, err := game.NewEngine(cfg)
	if err != nil {
		return game.Status{}, err
	}
	fmt.Fprintf(w, "Game %s\n%s\n", e.ID(), e.Board())

	for !e.IsGameOver().Over {
		out, err := e.ComputerMove(ctx, players[e.ToMove()])
		if err != nil {
			return game.Status{}, err
		}
		if showEvery > 0 && e.Rounds()%showEvery == 0 {
			fmt.Fprintf(w, "Round %d: %s %s (reward %d, %d hops)\n%s\n",
				e.Rounds(), out.Mover, out.Move, out.Reward, out.Hops(), e.Board())
		}
	}

	st := e.IsGameOver()
	switch {
	case st.IsDraw:
		fmt.Fprintf(w, "Draw after %d rounds.\n", e.Rounds())
	default:
		fmt.Fprintf(w, "%s wins after %d rounds.\n", st.Winner, e.Rounds())
	}
	fmt.Fprintf(w, "Final position: %s\n%s\n", e.Notation(), e.Board())
	return st, nil
}
