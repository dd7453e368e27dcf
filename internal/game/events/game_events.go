package events

import (
	"time"
)

// Event type constants
const (
	TypeGameStarted      = "game.started"
	TypeGameEnded        = "game.ended"
	TypeMoveApplied      = "move.applied"
	TypeMoveRejected     = "move.rejected"
	TypePieceDestroyed   = "piece.destroyed"
	TypeStateTransition  = "state.transition"
	TypeEpisodeCompleted = "episode.completed"
	TypeTrainingStopped  = "training.stopped"
)

// GameStartedEvent is published when a new game begins
type GameStartedEvent struct {
	BaseEvent
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Notation string `json:"notation"`
	ToMove   string `json:"to_move"`
}

func NewGameStartedEvent(gameID string, width, height int, position, toMove string) *GameStartedEvent {
	return &GameStartedEvent{
		BaseEvent: newBase(TypeGameStarted, gameID),
		Width:     width,
		Height:    height,
		Notation:  position,
		ToMove:    toMove,
	}
}

// MoveAppliedEvent is published after a move and its light resolution are committed
type MoveAppliedEvent struct {
	BaseEvent
	Metadata EventMetadata `json:"metadata"`
	Move     string        `json:"move"`
	Reward   int           `json:"reward"`
	Hops     int           `json:"hops"`
	Notation string        `json:"notation"`
}

func NewMoveAppliedEvent(gameID, player string, round int, move string, reward, hops int, position string) *MoveAppliedEvent {
	return &MoveAppliedEvent{
		BaseEvent: newBase(TypeMoveApplied, gameID),
		Metadata:  EventMetadata{Player: player, Round: round},
		Move:      move,
		Reward:    reward,
		Hops:      hops,
		Notation:  position,
	}
}

// MoveRejectedEvent is published when a submitted move fails validation
type MoveRejectedEvent struct {
	BaseEvent
	Metadata EventMetadata `json:"metadata"`
	Move     string        `json:"move"`
	Reason   string        `json:"reason"`
}

func NewMoveRejectedEvent(gameID, player string, round int, move, reason string) *MoveRejectedEvent {
	return &MoveRejectedEvent{
		BaseEvent: newBase(TypeMoveRejected, gameID),
		Metadata:  EventMetadata{Player: player, Round: round},
		Move:      move,
		Reason:    reason,
	}
}

// PieceDestroyedEvent is published when a ray destroys a piece
type PieceDestroyedEvent struct {
	BaseEvent
	Metadata EventMetadata `json:"metadata"`
	Piece    string        `json:"piece"`
	Code     int           `json:"code"`
	X        int           `json:"x"`
	Y        int           `json:"y"`
}

func NewPieceDestroyedEvent(gameID, player string, round int, piece string, code, x, y int) *PieceDestroyedEvent {
	return &PieceDestroyedEvent{
		BaseEvent: newBase(TypePieceDestroyed, gameID),
		Metadata:  EventMetadata{Player: player, Round: round},
		Piece:     piece,
		Code:      code,
		X:         x,
		Y:         y,
	}
}

// GameEndedEvent is published when a game ends. Winner is empty for a draw.
type GameEndedEvent struct {
	BaseEvent
	Winner   string        `json:"winner,omitempty"`
	Draw     bool          `json:"draw"`
	Rounds   int           `json:"rounds"`
	Duration time.Duration `json:"duration"`
}

func NewGameEndedEvent(gameID, winner string, draw bool, rounds int, duration time.Duration) *GameEndedEvent {
	return &GameEndedEvent{
		BaseEvent: newBase(TypeGameEnded, gameID),
		Winner:    winner,
		Draw:      draw,
		Rounds:    rounds,
		Duration:  duration,
	}
}

// StateTransitionEvent is published when a state machine moves between phases
type StateTransitionEvent struct {
	BaseEvent
	FromPhase string `json:"from_phase"`
	ToPhase   string `json:"to_phase"`
	Reason    string `json:"reason"`
}

func NewStateTransitionEvent(gameID, fromPhase, toPhase, reason string) *StateTransitionEvent {
	return &StateTransitionEvent{
		BaseEvent: newBase(TypeStateTransition, gameID),
		FromPhase: fromPhase,
		ToPhase:   toPhase,
		Reason:    reason,
	}
}

// EpisodeCompletedEvent is published by the trainer at the end of every episode
type EpisodeCompletedEvent struct {
	BaseEvent
	Episode     int     `json:"episode"`
	Outcome     string  `json:"outcome"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"total_reward"`
	Epsilon     float64 `json:"epsilon"`
	Loss        float64 `json:"loss"`
}

func NewEpisodeCompletedEvent(runID string, episode int, outcome string, steps int, totalReward, epsilon, loss float64) *EpisodeCompletedEvent {
	return &EpisodeCompletedEvent{
		BaseEvent:   newBase(TypeEpisodeCompleted, runID),
		Episode:     episode,
		Outcome:     outcome,
		Steps:       steps,
		TotalReward: totalReward,
		Epsilon:     epsilon,
		Loss:        loss,
	}
}

// TrainingStoppedEvent is published once when a training run stops, normally or not
type TrainingStoppedEvent struct {
	BaseEvent
	Episodes int    `json:"episodes"`
	Wins     int    `json:"wins"`
	Draws    int    `json:"draws"`
	Losses   int    `json:"losses"`
	Error    string `json:"error,omitempty"`
}

func NewTrainingStoppedEvent(runID string, episodes, wins, draws, losses int, err error) *TrainingStoppedEvent {
	e := &TrainingStoppedEvent{
		BaseEvent: newBase(TypeTrainingStopped, runID),
		Episodes:  episodes,
		Wins:      wins,
		Draws:     draws,
		Losses:    losses,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
