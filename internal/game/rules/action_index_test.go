package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
)

func TestActionSpace_Size(t *testing.T) {
	s := NewActionSpace(7, 6)
	assert.Equal(t, 504, s.Size())

	// Corner (0,0) loses N, NE, SW, W and NW.
	for _, slot := range []int{0, 1, 5, 6, 7} {
		assert.True(t, s.Excluded(slot), "slot %d", slot)
	}
	for _, slot := range []int{2, 3, 4, 8, 9, 10, 11} {
		assert.False(t, s.Excluded(slot), "slot %d", slot)
	}
	assert.True(t, s.Excluded(-1))
	assert.True(t, s.Excluded(504))

	// Every border cell loses at least three slots, interior cells none.
	border := 2*7 + 2*4
	assert.GreaterOrEqual(t, len(s.ExcludedIndices()), border*3)
}

func TestActionSpace_RoundTrip(t *testing.T) {
	v := NewMoveValidator()
	s := NewActionSpace(7, 6)
	b := notation.Standard().Board

	for _, owner := range []core.Owner{core.Camaxtli, core.Nanahuatzin} {
		moves := v.LegalMoves(b, owner)
		seen := make(map[int]bool)
		for _, m := range moves {
			idx, err := s.MoveToIndex(m)
			require.NoError(t, err, "move %s", m)
			assert.False(t, s.Excluded(idx), "legal move %s on an excluded index", m)
			assert.False(t, seen[idx], "index %d used twice", idx)
			seen[idx] = true

			back, err := s.MoveFromIndex(b, owner, idx, v)
			require.NoError(t, err)
			assert.Equal(t, m, back)
		}

		mask := s.LegalActionMask(b, owner, v)
		count := 0
		for _, ok := range mask {
			if ok {
				count++
			}
		}
		assert.Equal(t, len(moves), count)
	}
}

func TestActionSpace_KnownIndices(t *testing.T) {
	s := NewActionSpace(7, 6)
	b := notation.Standard().Board

	sun := b.At(core.NewField(6, 5))
	idx, err := s.MoveToIndex(core.NewRotation(sun, core.NewField(6, 5), 3))
	require.NoError(t, err)
	assert.Equal(t, 503, idx)

	king := b.At(core.NewField(3, 5))
	idx, err = s.MoveToIndex(core.NewWalk(king, core.NewField(3, 5), core.NewField(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, (5*7+3)*12, idx)
}

func TestActionSpace_MoveFromIndexRejects(t *testing.T) {
	v := NewMoveValidator()
	s := NewActionSpace(7, 6)
	b := notation.Standard().Board

	_, err := s.MoveFromIndex(b, core.Camaxtli, 0, v)
	assert.ErrorIs(t, err, core.ErrIllegalMove, "excluded index")

	_, err = s.MoveFromIndex(b, core.Camaxtli, (3*7+3)*12+2, v)
	assert.ErrorIs(t, err, core.ErrEmptyField)

	_, err = s.MoveFromIndex(b, core.Camaxtli, (5*7+3)*12+8, v)
	assert.ErrorIs(t, err, core.ErrIllegalMove, "kings do not rotate")

	_, err = s.MoveFromIndex(b, core.Nanahuatzin, (5*7+3)*12, v)
	assert.ErrorIs(t, err, core.ErrNotOwned)
}
