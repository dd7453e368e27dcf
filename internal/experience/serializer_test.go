package experience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/testutil"
)

func TestLayerIndex(t *testing.T) {
	tests := []struct {
		piece core.Piece
		layer int
	}{
		{core.NewPiece(core.Camaxtli, core.Sun, 0), 0},
		{core.NewPiece(core.Camaxtli, core.Sun, 3), 3},
		{core.NewPiece(core.Camaxtli, core.King, 0), 4},
		{core.NewPiece(core.Camaxtli, core.Wall, 0), 5},
		{core.NewPiece(core.Camaxtli, core.Reflector, 1), 7},
		{core.NewPiece(core.Camaxtli, core.Angler, 2), 10},
		{core.NewPiece(core.Nanahuatzin, core.Sun, 2), 14},
		{core.NewPiece(core.Nanahuatzin, core.King, 0), 16},
		{core.NewPiece(core.Nanahuatzin, core.Angler, 3), 23},
	}

	for _, tt := range tests {
		t.Run(tt.piece.String(), func(t *testing.T) {
			layer, ok := LayerIndex(tt.piece)
			require.True(t, ok)
			assert.Equal(t, tt.layer, layer)
		})
	}

	_, ok := LayerIndex(core.Piece{Owner: core.OwnerNone})
	assert.False(t, ok)
}

func TestLayerIndex_CoversEveryRepresentablePiece(t *testing.T) {
	seen := make(map[int]bool)
	for _, owner := range []core.Owner{core.Camaxtli, core.Nanahuatzin} {
		for kind := core.Sun; kind <= core.Angler; kind++ {
			for o := 0; o < kind.Orientations(); o++ {
				layer, ok := LayerIndex(core.NewPiece(owner, kind, o))
				require.True(t, ok)
				assert.False(t, seen[layer], "layer %d used twice", layer)
				seen[layer] = true
			}
		}
	}
	assert.Len(t, seen, NumLayers)
}

func TestSerializer_BoardToTensor(t *testing.T) {
	s := NewSerializer()
	b := testutil.StandardBoard()

	tensor := s.BoardToTensor(b)
	require.Len(t, tensor, TensorSize(b.W, b.H))
	assert.Equal(t, []int32{24, 6, 7}, s.GetTensorShape(b.W, b.H))

	pieces := 0
	b.ForEach(func(core.Field, core.Piece) { pieces++ })
	ones := 0
	for _, v := range tensor {
		if v == 1 {
			ones++
		} else {
			assert.Zero(t, v)
		}
	}
	assert.Equal(t, pieces, ones)

	// Nanahuatzin's Sun faces Down from (0,0): layer 14, cell (0,0).
	assert.Equal(t, float32(1), tensor[14*6*7+0])
	// Camaxtli's Sun faces Up from (6,5): layer 0.
	assert.Equal(t, float32(1), tensor[0*6*7+5*7+6])
	// Camaxtli's King on (3,5): layer 4.
	assert.Equal(t, float32(1), tensor[4*6*7+5*7+3])
}

func TestSerializer_Batch(t *testing.T) {
	s := NewSerializer()
	b := testutil.StandardBoard()
	next, err := game.Apply(b, game.LegalMoves(b, core.Camaxtli)[0])
	require.NoError(t, err)

	batch := s.BatchBoardToTensor([]*core.Board{b, next})
	require.Len(t, batch, 2)
	assert.Equal(t, s.BoardToTensor(b), batch[0])
	assert.NotEqual(t, batch[0], batch[1])
}

func TestSerializer_ActionMask(t *testing.T) {
	s := NewSerializer()
	b := testutil.StandardBoard()

	mask := s.GenerateActionMask(b, core.Camaxtli)
	legal := s.LegalActions(b, core.Camaxtli)
	require.Len(t, mask, 504)
	require.Len(t, legal, len(game.LegalMoves(b, core.Camaxtli)))

	count := 0
	for _, ok := range mask {
		if ok {
			count++
		}
	}
	assert.Equal(t, len(legal), count)
	for i := 1; i < len(legal); i++ {
		assert.Less(t, legal[i-1], legal[i])
	}
	assert.Same(t, s.ActionSpace(7, 6), s.ActionSpace(7, 6))
}
