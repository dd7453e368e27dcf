package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
)

// sunShotBoard has Camaxtli's Sun in the bottom-right corner aiming along the bottom
// rank once rotated to face Left, with target on (4,5).
func sunShotBoard(target core.Piece) *core.Board {
	b := core.NewBoard(7, 6)
	b.Set(core.NewField(0, 0), core.NewPiece(core.Nanahuatzin, core.Sun, 2))
	b.Set(core.NewField(6, 5), core.NewPiece(core.Camaxtli, core.Sun, 0))
	b.Set(core.NewField(3, 3), core.NewPiece(core.Camaxtli, core.King, 0))
	if target.Kind != core.King {
		b.Set(core.NewField(3, 1), core.NewPiece(core.Nanahuatzin, core.King, 0))
	}
	b.Set(core.NewField(4, 5), target)
	return b
}

func aimLeft(b *core.Board) core.Move {
	return core.NewRotation(b.At(core.NewField(6, 5)), core.NewField(6, 5), int(core.Left))
}

func TestExecuteWithReward_Destroy(t *testing.T) {
	x := NewExecutor(DefaultRewards())

	tests := []struct {
		name   string
		target core.Piece
		reward int
	}{
		{"opponent wall", core.NewPiece(core.Nanahuatzin, core.Wall, 0), 120},
		{"opponent angler", core.NewPiece(core.Nanahuatzin, core.Angler, 2), 150},
		{"own wall", core.NewPiece(core.Camaxtli, core.Wall, 0), -220},
		{"own angler", core.NewPiece(core.Camaxtli, core.Angler, 3), -250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sunShotBoard(tt.target)
			out, err := x.ExecuteWithReward(b, aimLeft(b), core.Camaxtli)
			require.NoError(t, err)

			require.NotNil(t, out.Light.Destroyed)
			assert.Equal(t, tt.target, out.Light.Destroyed.Piece)
			assert.True(t, out.Board.At(core.NewField(4, 5)).IsEmpty())
			assert.Equal(t, tt.reward, out.Reward)
			assert.Equal(t, -tt.reward, out.RewardFor(core.Nanahuatzin))
			assert.False(t, out.Terminal())
			assert.Equal(t, 3, out.Hops())
		})
	}
}

func TestExecuteWithReward_TerminalSymmetry(t *testing.T) {
	x := NewExecutor(DefaultRewards())

	b := sunShotBoard(core.NewPiece(core.Nanahuatzin, core.King, 0))
	out, err := x.ExecuteWithReward(b, aimLeft(b), core.Camaxtli)
	require.NoError(t, err)
	assert.Equal(t, core.Camaxtli, out.Winner)
	assert.Equal(t, 10000, out.RewardFor(core.Camaxtli))
	assert.Equal(t, -10000, out.RewardFor(core.Nanahuatzin))

	b = sunShotBoard(core.NewPiece(core.Camaxtli, core.King, 0))
	b.Clear(core.NewField(3, 3))
	b.Set(core.NewField(3, 1), core.NewPiece(core.Nanahuatzin, core.King, 0))
	out, err = x.ExecuteWithReward(b, aimLeft(b), core.Camaxtli)
	require.NoError(t, err)
	assert.Equal(t, core.Nanahuatzin, out.Winner)
	assert.Equal(t, -10000, out.RewardFor(core.Camaxtli))
	assert.Equal(t, 10000, out.RewardFor(core.Nanahuatzin))
}

func TestExecute_IsPure(t *testing.T) {
	x := NewExecutor(DefaultRewards())
	b := sunShotBoard(core.NewPiece(core.Nanahuatzin, core.Wall, 0))
	before := b.Clone()

	next, err := x.Execute(b, aimLeft(b), core.Camaxtli)
	require.NoError(t, err)

	assert.True(t, before.Equal(b))
	assert.False(t, next.Equal(b))
}

func TestExecute_RejectsIllegal(t *testing.T) {
	x := NewExecutor(DefaultRewards())
	b := notation.Standard().Board
	sun := b.At(core.NewField(6, 5))

	_, err := x.ExecuteWithReward(b, core.NewRotation(sun, core.NewField(6, 5), 2), core.Camaxtli)
	assert.ErrorIs(t, err, core.ErrIllegalMove)

	_, err = x.ExecuteWithReward(b, core.NewRotation(sun, core.NewField(6, 5), 3), core.Nanahuatzin)
	assert.ErrorIs(t, err, core.ErrNotOwned)
}

func TestSimulate_MissingSun(t *testing.T) {
	x := NewExecutor(DefaultRewards())
	b := core.NewBoard(7, 6)
	b.Set(core.NewField(3, 3), core.NewPiece(core.Camaxtli, core.King, 0))
	m := core.NewWalk(b.At(core.NewField(3, 3)), core.NewField(3, 3), core.NewField(3, 2))

	_, err := x.Simulate(b, m, core.Camaxtli)
	assert.ErrorIs(t, err, core.ErrInvariant)
}

func TestPerRoundIncrement(t *testing.T) {
	rewards := DefaultRewards()
	rewards.PerRound = -1
	x := NewExecutor(rewards)
	b := notation.Standard().Board
	king := b.At(core.NewField(3, 5))

	out, err := x.ExecuteWithReward(b, core.NewWalk(king, core.NewField(3, 5), core.NewField(3, 4)), core.Camaxtli)
	require.NoError(t, err)
	assert.Equal(t, -1, out.Reward)
}

func TestFreeFunctions(t *testing.T) {
	b := notation.Standard().Board
	moves := LegalMoves(b, core.Camaxtli)
	require.NotEmpty(t, moves)

	next, err := Apply(b, moves[0])
	require.NoError(t, err)
	assert.False(t, next.Equal(b))

	assert.False(t, IsGameOver(b).Over)
	b.Clear(core.NewField(3, 0))
	status := IsGameOver(b)
	assert.True(t, status.Over)
	assert.Equal(t, core.Camaxtli, status.Winner)
}
