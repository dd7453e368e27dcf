package states

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
)

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseIdle, "Idle"},
		{PhasePreparing, "Preparing"},
		{PhaseRunning, "Running"},
		{PhaseEpisodeComplete, "EpisodeComplete"},
		{PhaseStopped, "Stopped"},
		{PhaseError, "Error"},
		{Phase(999), "Unknown(999)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.phase.String())
			if tt.phase <= PhaseError {
				p, err := ParsePhase(tt.expected)
				require.NoError(t, err)
				assert.Equal(t, tt.phase, p)
			}
		})
	}

	_, err := ParsePhase("Lobby")
	assert.Error(t, err)
}

func TestPhase_Transitions(t *testing.T) {
	all := []Phase{PhaseIdle, PhasePreparing, PhaseRunning, PhaseEpisodeComplete, PhaseStopped, PhaseError}
	tests := []struct {
		from    Phase
		allowed []Phase
	}{
		{PhaseIdle, []Phase{PhasePreparing, PhaseError}},
		{PhasePreparing, []Phase{PhaseRunning, PhaseStopped, PhaseError}},
		{PhaseRunning, []Phase{PhaseEpisodeComplete, PhaseStopped, PhaseError}},
		{PhaseEpisodeComplete, []Phase{PhasePreparing, PhaseStopped, PhaseError}},
		{PhaseStopped, []Phase{PhaseIdle}},
		{PhaseError, []Phase{PhaseIdle}},
	}

	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.AllowedTransitions())
			for _, target := range all {
				want := false
				for _, a := range tt.allowed {
					want = want || a == target
				}
				assert.Equal(t, want, tt.from.CanTransitionTo(target), "%s -> %s", tt.from, target)
			}
		})
	}

	assert.True(t, PhaseRunning.CanStep())
	assert.False(t, PhasePreparing.CanStep())
	assert.True(t, PhaseStopped.IsTerminal())
	assert.True(t, PhaseError.IsTerminal())
	assert.False(t, PhaseEpisodeComplete.IsTerminal())
}

func setup() (*StateMachine, *TrainingContext, *[]events.Event) {
	ctx := NewTrainingContext("run-1", zerolog.Nop())
	bus := events.NewEventBus(zerolog.Nop())
	var published []events.Event
	bus.SubscribeFunc(events.TypeStateTransition, func(e events.Event) {
		published = append(published, e)
	})
	return NewStateMachine(ctx, bus), ctx, &published
}

func TestStateMachine_EpisodeLoop(t *testing.T) {
	sm, ctx, published := setup()
	assert.Equal(t, PhaseIdle, sm.CurrentPhase())

	err := sm.TransitionTo(PhasePreparing, "train")
	require.Error(t, err, "no episodes requested yet")
	assert.Equal(t, PhaseIdle, sm.CurrentPhase())

	ctx.TotalEpisodes = 2
	for ep := 0; ep < 2; ep++ {
		require.NoError(t, sm.TransitionTo(PhasePreparing, "next episode"))
		require.NoError(t, sm.TransitionTo(PhaseRunning, "board ready"))
		require.NoError(t, sm.TransitionTo(PhaseEpisodeComplete, "terminal"))
	}
	assert.Equal(t, 2, ctx.Episode)
	assert.False(t, ctx.StartTime.IsZero())

	assert.Error(t, sm.TransitionTo(PhasePreparing, "one too many"))
	require.NoError(t, sm.TransitionTo(PhaseStopped, "done"))

	assert.Len(t, sm.History(), 7)
	assert.Len(t, *published, 7)
	last := (*published)[6].(*events.StateTransitionEvent)
	assert.Equal(t, "EpisodeComplete", last.FromPhase)
	assert.Equal(t, "Stopped", last.ToPhase)
	assert.Equal(t, "run-1", last.GameID())
}

func TestStateMachine_InvalidTransition(t *testing.T) {
	sm, _, _ := setup()

	err := sm.TransitionTo(PhaseRunning, "skip preparing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition from Idle to Running")
	assert.Empty(t, sm.History())
}

func TestStateMachine_FailAndReset(t *testing.T) {
	sm, ctx, _ := setup()
	ctx.TotalEpisodes = 3
	require.NoError(t, sm.TransitionTo(PhasePreparing, "train"))
	require.NoError(t, sm.TransitionTo(PhaseRunning, "go"))

	boom := errors.New("non-finite target")
	require.NoError(t, sm.Fail(boom))
	assert.Equal(t, PhaseError, sm.CurrentPhase())
	assert.Equal(t, boom, ctx.Error)

	require.NoError(t, sm.Reset())
	assert.Equal(t, PhaseIdle, sm.CurrentPhase())
	assert.Nil(t, ctx.Error)
	assert.Equal(t, 0, ctx.TotalEpisodes)
	assert.Empty(t, sm.History())

	assert.NoError(t, sm.Reset(), "reset while idle is a no-op")
}

func TestErrorState_RequiresError(t *testing.T) {
	ctx := NewTrainingContext("run", zerolog.Nop())
	assert.Error(t, NewErrorState().Validate(ctx))
	ctx.Error = errors.New("x")
	assert.NoError(t, NewErrorState().Validate(ctx))
}

func TestTrainingContext_Metadata(t *testing.T) {
	ctx := NewTrainingContext("run", zerolog.Nop())
	ctx.SetMetadata("opponent", "minimax2")

	v, ok := ctx.GetMetadata("opponent")
	assert.True(t, ok)
	assert.Equal(t, "minimax2", v)

	ctx.reset()
	_, ok = ctx.GetMetadata("opponent")
	assert.False(t, ok)
}
