package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

func newNotationCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "notation",
		Usage:     "decode a position and describe it",
		ArgsUsage: "<position>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "width", Usage: "board width (default: game.width)"},
			&cli.IntFlag{Name: "height", Usage: "board height (default: game.height)"},
			&cli.BoolFlag{Name: "moves", Usage: "list the legal moves with their action indices"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("notation takes exactly one position argument")
			}
			w, h := int(cmd.Int("width")), int(cmd.Int("height"))
			if w == 0 {
				w = a.cfg().Game.Width
			}
			if h == 0 {
				h = a.cfg().Game.Height
			}
			return describePosition(os.Stdout, cmd.Args().First(), w, h, cmd.Bool("moves"))
		},
	}
}

func describePosition(out io.Writer, position string, w, h int, listMoves bool) error {
	pos, err := notation.Decode(position, h, w)
	if err != nil {
		return err
	}
	b, next := pos.Board, pos.Next

	fmt.Fprintf(out, "%s\n", b)
	fmt.Fprintf(out, "Canonical: %s\n", notation.Encode(b, next))
	fmt.Fprintf(out, "To move:   %s\n", next)

	st := game.IsGameOver(b)
	switch {
	case st.Over && st.IsDraw:
		fmt.Fprintln(out, "Status:    draw")
	case st.Over:
		fmt.Fprintf(out, "Status:    %s wins\n", st.Winner)
	default:
		fmt.Fprintln(out, "Status:    in progress")
	}
	if st.Over {
		return nil
	}

	moves := game.LegalMoves(b, next)
	fmt.Fprintf(out, "Legal moves: %d\n", len(moves))
	if !listMoves {
		return nil
	}
	space := rules.NewActionSpace(b.W, b.H)
	for _, m := range moves {
		idx, err := space.MoveToIndex(m)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %4d  %s\n", idx, m)
	}
	return nil
}
