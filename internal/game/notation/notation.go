// Package notation reads and writes the compact position string used for saved games,
// history and repetition keys.
//
// Ranks are written top to bottom separated by '/'. A run of empty cells is its count,
// a piece is its letter (s,k,w,r,a; uppercase for Camaxtli) followed by one orientation
// digit, and the suffix "-c" or "-n" names the player to move.
package notation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
)

// Standard7x6 is the opening position of the active configuration.
const Standard7x6 = "s21w0k0r02/1r15/2A31a01A2/a01A21a12/5R11/2R0K0W01S0-c"

var ErrInvalidNotation = errors.New("invalid notation")

// Position is a decoded notation string.
type Position struct {
	Board *core.Board
	Next  core.Owner
}

// Encode writes the board and the player to move.
func Encode(b *core.Board, next core.Owner) string {
	var sb strings.Builder
	for y := 0; y < b.H; y++ {
		if y > 0 {
			sb.WriteByte('/')
		}
		run := 0
		for x := 0; x < b.W; x++ {
			p := b.At(core.NewField(x, y))
			if p.IsEmpty() {
				run++
				continue
			}
			if run > 0 {
				sb.WriteString(strconv.Itoa(run))
				run = 0
			}
			sb.WriteByte(p.Letter())
			sb.WriteByte(byte('0' + p.Orientation))
		}
		if run > 0 {
			sb.WriteString(strconv.Itoa(run))
		}
	}
	if next == core.Nanahuatzin {
		sb.WriteString("-n")
	} else {
		sb.WriteString("-c")
	}
	return sb.String()
}

// Decode parses a notation string for a board of exactly h ranks and w files. Any
// deviation yields ErrInvalidNotation and no board.
func Decode(s string, h, w int) (Position, error) {
	if h <= 0 || w <= 0 || h > core.MaxSide || w > core.MaxSide {
		return Position{}, fmt.Errorf("board size %dx%d outside 1..%d: %w", w, h, core.MaxSide, ErrInvalidNotation)
	}
	body, suffix, ok := strings.Cut(s, "-")
	if !ok {
		return Position{}, fmt.Errorf("missing side to move: %w", ErrInvalidNotation)
	}
	var next core.Owner
	switch suffix {
	case "c":
		next = core.Camaxtli
	case "n":
		next = core.Nanahuatzin
	default:
		return Position{}, fmt.Errorf("side to move %q: %w", suffix, ErrInvalidNotation)
	}

	ranks := strings.Split(body, "/")
	if len(ranks) != h {
		return Position{}, fmt.Errorf("got %d ranks, want %d: %w", len(ranks), h, ErrInvalidNotation)
	}

	b := core.NewBoard(w, h)
	for y, rank := range ranks {
		if err := decodeRank(b, rank, y); err != nil {
			return Position{}, err
		}
	}
	return Position{Board: b, Next: next}, nil
}

func decodeRank(b *core.Board, rank string, y int) error {
	x := 0
	for i := 0; i < len(rank); {
		c := rank[i]
		if c == '0' {
			return fmt.Errorf("rank %d: empty run starting with 0: %w", y, ErrInvalidNotation)
		}
		if c >= '1' && c <= '9' {
			j := i
			for j < len(rank) && rank[j] >= '0' && rank[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(rank[i:j])
			if err != nil || n == 0 {
				return fmt.Errorf("rank %d: bad empty run %q: %w", y, rank[i:j], ErrInvalidNotation)
			}
			x += n
			if x > b.W {
				return fmt.Errorf("rank %d overflows %d files: %w", y, b.W, ErrInvalidNotation)
			}
			i = j
			continue
		}

		owner, kind, ok := core.KindFromLetter(c)
		if !ok {
			return fmt.Errorf("rank %d: unknown piece %q: %w", y, c, ErrInvalidNotation)
		}
		if i+1 >= len(rank) || rank[i+1] < '0' || rank[i+1] > '9' {
			return fmt.Errorf("rank %d: piece %q without orientation: %w", y, c, ErrInvalidNotation)
		}
		orientation := int(rank[i+1] - '0')
		if orientation >= kind.Orientations() {
			return fmt.Errorf("rank %d: orientation %d for %s: %w", y, orientation, kind, ErrInvalidNotation)
		}
		if x >= b.W {
			return fmt.Errorf("rank %d overflows %d files: %w", y, b.W, ErrInvalidNotation)
		}
		b.Set(core.NewField(x, y), core.Piece{Owner: owner, Kind: kind, Orientation: orientation})
		x++
		i += 2
	}
	if x != b.W {
		return fmt.Errorf("rank %d has %d files, want %d: %w", y, x, b.W, ErrInvalidNotation)
	}
	return nil
}

// MustDecode is Decode for compile-time constants; it panics on bad input.
func MustDecode(s string, h, w int) Position {
	pos, err := Decode(s, h, w)
	if err != nil {
		panic(err)
	}
	return pos
}

// Standard returns a fresh copy of the 7×6 opening position.
func Standard() Position {
	return MustDecode(Standard7x6, core.DefaultHeight, core.DefaultWidth)
}
