package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPieceFromCode(t *testing.T) {
	tests := []struct {
		code  int
		piece Piece
	}{
		{121, Piece{Owner: Nanahuatzin, Kind: Sun, Orientation: 2}},
		{1, Piece{Owner: Camaxtli, Kind: Sun, Orientation: 0}},
		{102, Piece{Owner: Nanahuatzin, Kind: King}},
		{3, Piece{Owner: Camaxtli, Kind: Wall}},
		{14, Piece{Owner: Camaxtli, Kind: Reflector, Orientation: 1}},
		{135, Piece{Owner: Nanahuatzin, Kind: Angler, Orientation: 3}},
	}

	for _, tt := range tests {
		p, err := PieceFromCode(tt.code)
		require.NoError(t, err, "code %d", tt.code)
		assert.Equal(t, tt.piece, p)
		assert.Equal(t, tt.code, p.Code())
	}
}

func TestPieceFromCode_Invalid(t *testing.T) {
	for _, code := range []int{-1, 6, 12, 24, 200, 109, 140} {
		_, err := PieceFromCode(code)
		assert.ErrorIs(t, err, ErrInvalidCode, "code %d", code)
	}

	p, err := PieceFromCode(0)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0, p.Code())
}

func TestNewPiece_PanicsOnUnpackable(t *testing.T) {
	assert.Panics(t, func() { NewPiece(Camaxtli, King, 1) })
	assert.Panics(t, func() { NewPiece(OwnerNone, Sun, 0) })
}

func TestPieceLetters(t *testing.T) {
	assert.Equal(t, byte('s'), NewPiece(Nanahuatzin, Sun, 0).Letter())
	assert.Equal(t, byte('K'), NewPiece(Camaxtli, King, 0).Letter())
	assert.Equal(t, "A3", NewPiece(Camaxtli, Angler, 3).String())

	owner, kind, ok := KindFromLetter('R')
	assert.True(t, ok)
	assert.Equal(t, Camaxtli, owner)
	assert.Equal(t, Reflector, kind)

	_, _, ok = KindFromLetter('x')
	assert.False(t, ok)
}

func TestOwner(t *testing.T) {
	assert.Equal(t, Nanahuatzin, Camaxtli.Opponent())
	assert.Equal(t, Camaxtli, Nanahuatzin.Opponent())
	assert.Equal(t, OwnerNone, OwnerNone.Opponent())
	assert.False(t, OwnerNone.Valid())
}

func TestKindOrientations(t *testing.T) {
	assert.Equal(t, 4, Sun.Orientations())
	assert.Equal(t, 1, King.Orientations())
	assert.Equal(t, 1, Wall.Orientations())
	assert.Equal(t, 2, Reflector.Orientations())
	assert.Equal(t, 4, Angler.Orientations())
	assert.Equal(t, Down, NewPiece(Nanahuatzin, Sun, 2).Facing())
	assert.Equal(t, DirNone, NewPiece(Nanahuatzin, Wall, 0).Facing())
}
