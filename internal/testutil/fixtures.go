package testutil

import (
	"testing"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
)

// Positions shared by package tests. All are 7x6.
const (
	// SunsAndKings has every Sun ray running along an empty edge.
	SunsAndKings = "s26/7/3k03/3K03/7/6S0-c"
	// KingInLine lets Camaxtli win by turning its Sun to face Left.
	KingInLine = "s26/7/7/3K03/7/4k01S0-c"
	// KingExposed lets Nanahuatzin win by turning its Sun to face Right; Camaxtli to move.
	KingExposed = "s23K02/7/7/7/3k03/6S0-c"
)

// MustBoard decodes a 7x6 position or fails the test.
func MustBoard(t testing.TB, position string) *core.Board {
	t.Helper()
	pos, err := notation.Decode(position, core.DefaultHeight, core.DefaultWidth)
	if err != nil {
		t.Fatalf("decode %q: %v", position, err)
	}
	return pos.Board
}

// StandardBoard returns a fresh copy of the standard opening.
func StandardBoard() *core.Board {
	return notation.Standard().Board
}
