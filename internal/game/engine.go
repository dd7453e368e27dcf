package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

var ErrInvalidPosition = errors.New("invalid position")

// Status is the game-over state of a position or session.
type Status struct {
	Over   bool
	Winner core.Owner
	IsDraw bool
}

// HistoryEntry records one committed move.
type HistoryEntry struct {
	Round    int
	Player   core.Owner
	Move     core.Move
	Reward   int
	Hops     int
	Notation string
}

// MoveChooser picks a move for owner. search.Policy and learning.Agent satisfy it.
type MoveChooser interface {
	ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error)
}

// HistoryChooser is a MoveChooser that also weighs the game's repetition history.
// draws is a copy the chooser may modify.
type HistoryChooser interface {
	ChooseMoveWithHistory(ctx context.Context, b *core.Board, owner core.Owner, draws *rules.DrawDetector) (core.Move, error)
}

// GameConfig holds the configuration for a new game
type GameConfig struct {
	// ID is generated when empty.
	ID            string
	Width, Height int
	// Position is a notation string; empty selects the standard opening, which
	// exists for 7x6 only.
	Position  string
	Rewards   RewardTable
	Draw      rules.DrawConfig
	Publisher events.Publisher
	Logger    zerolog.Logger
}

// Engine is one live game: the authoritative board, the side to move, the repetition
// history and the move log. It is not safe for concurrent use.
type Engine struct {
	id        string
	board     *core.Board
	toMove    core.Owner
	exec      *Executor
	draws     *rules.DrawDetector
	checker   *rules.WinConditionChecker
	history   []HistoryEntry
	status    Status
	startedAt time.Time
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewEngine(cfg GameConfig) (*Engine, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Width == 0 && cfg.Height == 0 {
		cfg.Width, cfg.Height = core.DefaultWidth, core.DefaultHeight
	}
	if cfg.Position == "" {
		if cfg.Width != core.DefaultWidth || cfg.Height != core.DefaultHeight {
			return nil, fmt.Errorf("no standard position for %dx%d: %w", cfg.Width, cfg.Height, ErrInvalidPosition)
		}
		cfg.Position = notation.Standard7x6
	}
	if cfg.Rewards == (RewardTable{}) {
		cfg.Rewards = DefaultRewards()
	}

	pos, err := notation.Decode(cfg.Position, cfg.Height, cfg.Width)
	if err != nil {
		return nil, err
	}
	if err := CheckPosition(pos.Board); err != nil {
		return nil, err
	}

	logger := cfg.Logger.With().Str("component", "GameEngine").Str("game_id", cfg.ID).Logger()
	e := &Engine{
		id:        cfg.ID,
		board:     pos.Board,
		toMove:    pos.Next,
		exec:      NewExecutor(cfg.Rewards),
		draws:     rules.NewDrawDetector(cfg.Draw),
		checker:   rules.NewWinConditionChecker(logger),
		status:    Status{Winner: core.OwnerNone},
		startedAt: time.Now(),
		publisher: cfg.Publisher,
		logger:    logger,
	}
	if over, winner := e.checker.CheckGameOver(e.board); over {
		e.status = Status{Over: true, Winner: winner}
	}

	e.publish(events.NewGameStartedEvent(e.id, cfg.Width, cfg.Height, cfg.Position, e.toMove.String()))
	e.logger.Info().
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Str("to_move", e.toMove.String()).
		Msg("Game started")
	return e, nil
}

// CheckPosition rejects boards the light rules cannot run on.
func CheckPosition(b *core.Board) error {
	for _, owner := range []core.Owner{core.Camaxtli, core.Nanahuatzin} {
		if n := b.Count(owner, core.Sun); n != 1 {
			return fmt.Errorf("%s has %d suns: %w", owner, n, ErrInvalidPosition)
		}
		if n := b.Count(owner, core.King); n > 1 {
			return fmt.Errorf("%s has %d kings: %w", owner, n, ErrInvalidPosition)
		}
	}
	return nil
}

func (e *Engine) ID() string { return e.id }

// Board returns a copy of the current board.
func (e *Engine) Board() *core.Board { return e.board.Clone() }

func (e *Engine) ToMove() core.Owner { return e.toMove }

func (e *Engine) Rounds() int { return len(e.history) }

func (e *Engine) Notation() string { return notation.Encode(e.board, e.toMove) }

func (e *Engine) IsGameOver() Status { return e.status }

// History returns a copy of the move log.
func (e *Engine) History() []HistoryEntry {
	out := make([]HistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// Draws returns a copy of the repetition history for probing.
func (e *Engine) Draws() *rules.DrawDetector { return e.draws.Clone() }

func (e *Engine) LegalMoves(owner core.Owner) []core.Move {
	if e.status.Over {
		return nil
	}
	return e.exec.Validator().LegalMoves(e.board, owner)
}

// Apply plays m for the side to move and commits the result. Illegal moves leave the
// game unchanged and return an error wrapping a core sentinel.
func (e *Engine) Apply(m core.Move) (Outcome, error) {
	if e.status.Over {
		return Outcome{}, core.ErrGameOver
	}
	mover := e.toMove
	round := len(e.history) + 1

	out, err := e.exec.ExecuteWithReward(e.board, m, mover)
	if err != nil {
		if errors.Is(err, core.ErrInvariant) {
			e.logger.Error().Err(err).Str("move", m.String()).Msg("Invariant violated")
			return Outcome{}, err
		}
		e.logger.Debug().Err(err).Str("move", m.String()).Msg("Move rejected")
		e.publish(events.NewMoveRejectedEvent(e.id, mover.String(), round, m.String(), err.Error()))
		return Outcome{}, err
	}

	e.board = out.Board
	e.toMove = mover.Opponent()
	if over, winner := e.checker.CheckGameOver(e.board); over {
		e.status = Status{Over: true, Winner: winner}
	} else if e.draws.Commit(e.board, e.toMove) {
		out = e.exec.WithDraw(out)
		e.status = Status{Over: true, Winner: core.OwnerNone, IsDraw: true}
	}

	position := e.Notation()
	e.history = append(e.history, HistoryEntry{
		Round:    round,
		Player:   mover,
		Move:     m,
		Reward:   out.Reward,
		Hops:     out.Hops(),
		Notation: position,
	})

	e.logger.Debug().
		Int("round", round).
		Str("player", mover.String()).
		Str("move", m.String()).
		Int("reward", out.Reward).
		Int("hops", out.Hops()).
		Msg("Move applied")
	e.publish(events.NewMoveAppliedEvent(e.id, mover.String(), round, m.String(), out.Reward, out.Hops(), position))
	if d := out.Light.Destroyed; d != nil {
		e.publish(events.NewPieceDestroyedEvent(e.id, mover.String(), round, d.Piece.String(), d.Piece.Code(), d.Field.X, d.Field.Y))
	}
	if e.status.Over {
		winner := ""
		if e.status.Winner != core.OwnerNone {
			winner = e.status.Winner.String()
		}
		e.publish(events.NewGameEndedEvent(e.id, winner, e.status.IsDraw, round, time.Since(e.startedAt)))
	}
	return out, nil
}

// ComputerMove asks p for a move for the side to move and applies it. A
// HistoryChooser is handed a copy of the repetition history.
func (e *Engine) ComputerMove(ctx context.Context, p MoveChooser) (Outcome, error) {
	if e.status.Over {
		return Outcome{}, core.ErrGameOver
	}
	var (
		m   core.Move
		err error
	)
	if hc, ok := p.(HistoryChooser); ok {
		m, err = hc.ChooseMoveWithHistory(ctx, e.Board(), e.toMove, e.draws.Clone())
	} else {
		m, err = p.ChooseMove(ctx, e.Board(), e.toMove)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("choosing move for %s: %w", e.toMove, err)
	}
	return e.Apply(m)
}

func (e *Engine) publish(ev events.Event) {
	if e.publisher != nil {
		e.publisher.Publish(ev)
	}
}
