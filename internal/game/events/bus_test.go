package events

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())

	var received Event
	bus.SubscribeFunc(TypeGameStarted, func(e Event) {
		received = e
	})

	bus.Publish(NewGameStartedEvent("test-game", 7, 6, "7/7/7/7/7/7-c", "Camaxtli"))

	require.NotNil(t, received, "Event should have been received")
	assert.Equal(t, TypeGameStarted, received.Type())
	assert.Equal(t, "test-game", received.GameID())
	assert.Equal(t, 1, bus.FuncHandlerCount(TypeGameStarted))
}

func TestEventBusMultipleHandlers(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())

	var calls []int
	id1 := bus.SubscribeFunc(TypeMoveApplied, func(e Event) { calls = append(calls, 1) })
	id2 := bus.SubscribeFunc(TypeMoveApplied, func(e Event) { calls = append(calls, 2) })

	bus.Publish(NewMoveAppliedEvent("g", "Camaxtli", 1, "walk K0(3,5)->(3,4)", 0, 10, "x"))

	assert.Equal(t, []int{1, 2}, calls)
	assert.NotEqual(t, id1, id2)
}

// recordingSubscriber implements Subscriber for tests
type recordingSubscriber struct {
	id              string
	interestedTypes map[string]bool
	receivedEvents  []Event
}

func (s *recordingSubscriber) ID() string { return s.id }

func (s *recordingSubscriber) HandleEvent(e Event) {
	s.receivedEvents = append(s.receivedEvents, e)
}

func (s *recordingSubscriber) InterestedIn(eventType string) bool {
	if s.interestedTypes == nil {
		return true
	}
	return s.interestedTypes[eventType]
}

func TestEventBusSubscriber(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())

	subscriber := &recordingSubscriber{
		id: "test-subscriber",
		interestedTypes: map[string]bool{
			TypeGameStarted: true,
			TypeGameEnded:   true,
		},
	}
	bus.Subscribe(subscriber)
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Publish(NewGameStartedEvent("test-game", 7, 6, "", "Camaxtli"))
	bus.Publish(NewMoveRejectedEvent("test-game", "Camaxtli", 1, "walk", "illegal"))
	bus.Publish(NewGameEndedEvent("test-game", "Nanahuatzin", false, 40, time.Minute))

	require.Len(t, subscriber.receivedEvents, 2)
	assert.Equal(t, TypeGameStarted, subscriber.receivedEvents[0].Type())
	ended, ok := subscriber.receivedEvents[1].(*GameEndedEvent)
	require.True(t, ok)
	assert.Equal(t, "Nanahuatzin", ended.Winner)

	bus.Unsubscribe(subscriber.ID())
	bus.Publish(NewGameStartedEvent("test-game", 7, 6, "", "Camaxtli"))
	assert.Len(t, subscriber.receivedEvents, 2)
}

func TestEventBusRecoversFromPanics(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())

	called := false
	bus.SubscribeFunc(TypeGameEnded, func(e Event) { panic("boom") })
	bus.SubscribeFunc(TypeGameEnded, func(e Event) { called = true })

	assert.NotPanics(t, func() {
		bus.Publish(NewGameEndedEvent("g", "", true, 500, time.Second))
	})
	assert.True(t, called, "later handlers still run")
}

func TestLogSubscriber(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sub := NewLogSubscriber("log", logger, TypeEpisodeCompleted)

	assert.True(t, sub.InterestedIn(TypeEpisodeCompleted))
	assert.False(t, sub.InterestedIn(TypeMoveApplied))

	bus := NewEventBus(zerolog.Nop())
	bus.Subscribe(sub)
	bus.Publish(NewEpisodeCompletedEvent("run-1", 3, "win", 17, 10100, 0.5, 0.25))
	bus.Publish(NewMoveAppliedEvent("run-1", "Camaxtli", 1, "m", 0, 3, "x"))

	out := buf.String()
	assert.Contains(t, out, `"episode":3`)
	assert.Contains(t, out, `"outcome":"win"`)
	assert.Contains(t, out, `"component":"event_log"`)
	assert.NotContains(t, out, "Move applied")
}

func TestTrainingStoppedEvent_CarriesError(t *testing.T) {
	e := NewTrainingStoppedEvent("run", 2, 1, 0, 1, assert.AnError)
	assert.Equal(t, assert.AnError.Error(), e.Error)
	assert.Equal(t, TypeTrainingStopped, e.Type())
}
