package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/experience"
	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
	"github.com/mitchelldurbincs/tonatiuh/internal/testutil"
)

// sunWinAction rotates Camaxtli's Sun at (6,5) to face Left on a 7x6 board.
const sunWinAction = (5*7+6)*rules.ActionsPerField + 8 + 3

func TestSafeRandomOpponent_AvoidsImmediateLoss(t *testing.T) {
	b := testutil.MustBoard(t, testutil.KingExposed)
	o := NewSafeRandomOpponent(game.DefaultRewards(), testutil.NewTestRNG(1))

	for i := 0; i < 30; i++ {
		m, err := o.ChooseMove(context.Background(), b, core.Camaxtli)
		require.NoError(t, err)
		assert.Equal(t, core.King, m.Piece.Kind, "only a King move leaves the Sun's line")
		assert.Equal(t, 1, m.To.Y)
	}
}

func TestSafeRandomOpponent_FallsBackWhenEveryMoveLoses(t *testing.T) {
	// Walls keep Camaxtli's King on the top rank, in the line of the enemy Sun.
	b := testutil.MustBoard(t, "s22K03/2w0w0w02/7/7/3k03/6S0-c")
	legal := game.LegalMoves(b, core.Camaxtli)
	require.NotEmpty(t, legal)

	o := NewSafeRandomOpponent(game.DefaultRewards(), testutil.NewTestRNG(2))
	m, err := o.ChooseMove(context.Background(), b, core.Camaxtli)
	require.NoError(t, err)
	assert.Contains(t, legal, m)
}

func TestSafeRandomOpponent_Errors(t *testing.T) {
	o := NewSafeRandomOpponent(game.DefaultRewards(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.ChooseMove(ctx, testutil.StandardBoard(), core.Camaxtli)
	assert.ErrorIs(t, err, context.Canceled)

	// Nanahuatzin's King is gone.
	_, err = o.ChooseMove(context.Background(), testutil.MustBoard(t, "s26/7/7/3K03/7/6S0-c"), core.Camaxtli)
	assert.ErrorIs(t, err, core.ErrGameOver)
}

func TestAgent_PlaysGreedyMove(t *testing.T) {
	b := testutil.MustBoard(t, testutil.KingInLine)
	m := newBoardModel()
	m.bias[sunWinAction] = 1

	agent := NewAgent(m, testutil.NewTestRNG(1))
	move, err := agent.ChooseMove(context.Background(), b, core.Camaxtli)
	require.NoError(t, err)
	assert.Equal(t, core.MoveRotation, move.Kind)
	assert.Equal(t, core.Sun, move.Piece.Kind)
	assert.Equal(t, 3, move.Result.Orientation)
}

func TestAgent_UntrainedModelPlaysLegalMoves(t *testing.T) {
	b := testutil.StandardBoard()
	legal := game.LegalMoves(b, core.Nanahuatzin)
	agent := NewAgent(newBoardModel(), testutil.NewTestRNG(5))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		m, err := agent.ChooseMove(context.Background(), b, core.Nanahuatzin)
		require.NoError(t, err)
		assert.Contains(t, legal, m)
		seen[m.String()] = true
	}
	assert.Greater(t, len(seen), 1, "ties are broken at random")
}

func TestAgent_LoadFromFile(t *testing.T) {
	path := t.TempDir() + "/agent.bin"
	m := newBoardModel()
	m.bias[sunWinAction] = 2
	require.NoError(t, SaveModel(m, path))

	agent, err := LoadAgent(path, nil)
	require.NoError(t, err)
	move, err := agent.ChooseMove(context.Background(), testutil.MustBoard(t, testutil.KingInLine), core.Camaxtli)
	require.NoError(t, err)
	assert.Equal(t, 3, move.Result.Orientation)

	_, err = agent.ChooseMove(context.Background(), testutil.MustBoard(t, "s26/7/7/3K03/7/6S0-c"), core.Camaxtli)
	assert.ErrorIs(t, err, core.ErrGameOver)
}

func newBoardModel() *LinearApproximator {
	return NewLinearApproximator(
		experience.TensorSize(core.DefaultWidth, core.DefaultHeight),
		rules.NewActionSpace(core.DefaultWidth, core.DefaultHeight).Size(),
		0.01, nil)
}
