package game

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

// Suns and Kings only; every Sun orientation sends the ray along an empty edge.
const quietPosition = "s26/7/3k03/3K03/7/6S0-c"

// Camaxtli wins by turning the Sun to face Left.
const killPosition = "s26/7/7/3K03/7/4k01S0-c"

func newTestEngine(t *testing.T, position string, draw rules.DrawConfig) (*Engine, *[]events.Event) {
	t.Helper()
	bus := events.NewEventBus(zerolog.Nop())
	var seen []events.Event
	bus.Subscribe(&collector{events: &seen})

	e, err := NewEngine(GameConfig{
		Position:  position,
		Draw:      draw,
		Publisher: bus,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return e, &seen
}

type collector struct {
	events *[]events.Event
}

func (c *collector) ID() string                 { return "collector" }
func (c *collector) InterestedIn(_ string) bool { return true }
func (c *collector) HandleEvent(e events.Event) { *c.events = append(*c.events, e) }

func eventTypes(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type()
	}
	return out
}

func TestNewEngine_Standard(t *testing.T) {
	e, seen := newTestEngine(t, "", rules.DrawConfig{})

	assert.NotEmpty(t, e.ID())
	assert.Equal(t, notation.Standard7x6, e.Notation())
	assert.Equal(t, core.Camaxtli, e.ToMove())
	assert.False(t, e.IsGameOver().Over)
	assert.NotEmpty(t, e.LegalMoves(core.Camaxtli))
	assert.Equal(t, []string{events.TypeGameStarted}, eventTypes(*seen))
}

func TestNewEngine_RejectsBadPositions(t *testing.T) {
	_, err := NewEngine(GameConfig{Position: "7/7/7/7/7/7-c", Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = NewEngine(GameConfig{Position: "bogus", Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, notation.ErrInvalidNotation)

	_, err = NewEngine(GameConfig{Width: 10, Height: 8, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestEngine_ApplyAndHistory(t *testing.T) {
	e, seen := newTestEngine(t, "", rules.DrawConfig{})
	b := e.Board()
	king := b.At(core.NewField(3, 5))

	out, err := e.Apply(core.NewWalk(king, core.NewField(3, 5), core.NewField(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Reward)
	assert.Equal(t, core.Nanahuatzin, e.ToMove())
	assert.Equal(t, 1, e.Rounds())

	h := e.History()
	require.Len(t, h, 1)
	assert.Equal(t, core.Camaxtli, h[0].Player)
	assert.Equal(t, e.Notation(), h[0].Notation)
	assert.Equal(t, 10, h[0].Hops)
	assert.Equal(t, []string{events.TypeGameStarted, events.TypeMoveApplied}, eventTypes(*seen))
}

func TestEngine_RejectsIllegalMove(t *testing.T) {
	e, seen := newTestEngine(t, "", rules.DrawConfig{})
	before := e.Notation()
	b := e.Board()
	king := b.At(core.NewField(3, 0))

	_, err := e.Apply(core.NewWalk(king, core.NewField(3, 0), core.NewField(3, 1)))
	assert.ErrorIs(t, err, core.ErrNotOwned)
	assert.Equal(t, before, e.Notation())
	assert.Equal(t, 0, e.Rounds())
	assert.Contains(t, eventTypes(*seen), events.TypeMoveRejected)
}

func TestEngine_Win(t *testing.T) {
	e, seen := newTestEngine(t, killPosition, rules.DrawConfig{})
	b := e.Board()

	out, err := e.Apply(core.NewRotation(b.At(core.NewField(6, 5)), core.NewField(6, 5), int(core.Left)))
	require.NoError(t, err)
	assert.Equal(t, 10000, out.Reward)

	status := e.IsGameOver()
	assert.True(t, status.Over)
	assert.Equal(t, core.Camaxtli, status.Winner)
	assert.Empty(t, e.LegalMoves(core.Nanahuatzin))

	_, err = e.Apply(core.Move{})
	assert.ErrorIs(t, err, core.ErrGameOver)

	types := eventTypes(*seen)
	assert.Contains(t, types, events.TypePieceDestroyed)
	assert.Equal(t, events.TypeGameEnded, types[len(types)-1])
}

func TestEngine_ThreefoldRepetition(t *testing.T) {
	e, _ := newTestEngine(t, quietPosition, rules.DrawConfig{})
	aSun, bSun := core.NewField(6, 5), core.NewField(0, 0)
	cycle := []struct {
		at core.Field
		to int
	}{{aSun, 3}, {bSun, 1}, {aSun, 0}, {bSun, 2}}

	for i := 0; i < 8; i++ {
		step := cycle[i%4]
		out, err := e.Apply(core.NewRotation(e.Board().At(step.at), step.at, step.to))
		require.NoError(t, err, "move %d", i+1)
		require.False(t, out.Draw, "move %d", i+1)
	}

	out, err := e.Apply(core.NewRotation(e.Board().At(aSun), aSun, 3))
	require.NoError(t, err)
	assert.True(t, out.Draw)
	assert.Equal(t, -1000, out.Reward)
	assert.True(t, e.IsGameOver().IsDraw)
	assert.Equal(t, core.OwnerNone, e.IsGameOver().Winner)
}

func TestEngine_PlyCap(t *testing.T) {
	e, _ := newTestEngine(t, quietPosition, rules.DrawConfig{MaxPlies: 2})
	aSun, bSun := core.NewField(6, 5), core.NewField(0, 0)

	_, err := e.Apply(core.NewRotation(e.Board().At(aSun), aSun, 3))
	require.NoError(t, err)
	out, err := e.Apply(core.NewRotation(e.Board().At(bSun), bSun, 1))
	require.NoError(t, err)
	assert.True(t, out.Draw)
}

type firstMove struct{}

func (firstMove) ChooseMove(_ context.Context, b *core.Board, owner core.Owner) (core.Move, error) {
	return LegalMoves(b, owner)[0], nil
}

type historyRecorder struct {
	firstMove
	plies int
}

func (h *historyRecorder) ChooseMoveWithHistory(ctx context.Context, b *core.Board, owner core.Owner, draws *rules.DrawDetector) (core.Move, error) {
	h.plies = draws.Plies()
	draws.Reset()
	return h.ChooseMove(ctx, b, owner)
}

func TestEngine_ComputerMovePassesHistory(t *testing.T) {
	e, _ := newTestEngine(t, quietPosition, rules.DrawConfig{})
	aSun := core.NewField(6, 5)
	_, err := e.Apply(core.NewRotation(e.Board().At(aSun), aSun, 3))
	require.NoError(t, err)

	h := &historyRecorder{}
	_, err = e.ComputerMove(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 1, h.plies)
	assert.Equal(t, 2, e.Draws().Plies(), "the chooser only sees a copy")
}

func TestEngine_ComputerMove(t *testing.T) {
	e, _ := newTestEngine(t, "", rules.DrawConfig{})

	_, err := e.ComputerMove(context.Background(), firstMove{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Rounds())
	assert.Equal(t, core.Nanahuatzin, e.ToMove())

	_, err = e.ComputerMove(context.Background(), firstMove{})
	require.NoError(t, err)
	assert.Equal(t, core.Nanahuatzin, e.History()[1].Player)
}
