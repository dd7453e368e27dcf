package game

import (
	"fmt"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

// Outcome is the result of executing one move.
type Outcome struct {
	Move  core.Move
	Mover core.Owner
	// Board is the position after the move and its light; the input board is untouched.
	Board *core.Board
	Light rules.LightResult
	// Reward is seen from the mover. Use RewardFor for the other side.
	Reward int
	// Winner is OwnerNone unless a King fell.
	Winner core.Owner
	// Draw is only ever set by an Engine, which owns the repetition history.
	Draw bool
}

func (o Outcome) HasWinner() bool { return o.Winner != core.OwnerNone }

// Terminal reports whether the game ended with this move.
func (o Outcome) Terminal() bool { return o.HasWinner() || o.Draw }

func (o Outcome) Hops() int { return o.Light.Hops() }

// RewardFor returns the reward from owner's point of view: the mover's reward as is,
// negated for the other side.
func (o Outcome) RewardFor(owner core.Owner) int {
	if owner == o.Mover {
		return o.Reward
	}
	return -o.Reward
}

// Executor applies moves to boards without mutating them.
type Executor struct {
	validator *rules.MoveValidator
	light     *rules.LightResolver
	rewards   RewardTable
}

func NewExecutor(rewards RewardTable) *Executor {
	return &Executor{
		validator: rules.NewMoveValidator(),
		light:     rules.NewLightResolver(),
		rewards:   rewards,
	}
}

func (x *Executor) Rewards() RewardTable { return x.rewards }

func (x *Executor) Validator() *rules.MoveValidator { return x.validator }

func (x *Executor) LightResolver() *rules.LightResolver { return x.light }

// Execute returns the board after actor plays m.
func (x *Executor) Execute(b *core.Board, m core.Move, actor core.Owner) (*core.Board, error) {
	out, err := x.ExecuteWithReward(b, m, actor)
	if err != nil {
		return nil, err
	}
	return out.Board, nil
}

// ExecuteWithReward checks m against the rules, then plays it. See Simulate.
func (x *Executor) ExecuteWithReward(b *core.Board, m core.Move, actor core.Owner) (Outcome, error) {
	if err := x.validator.IsLegal(b, m, actor); err != nil {
		return Outcome{}, err
	}
	return x.Simulate(b, m, actor)
}

// Simulate plays m on a copy of b without checking legality: the move is applied, the
// actor's Sun fires, a destroyed piece is removed and the winner is read from the
// remaining Kings. Callers pass moves taken from LegalMoves.
//
// A fallen King replaces the destroy reward with the terminal win or loss reward.
func (x *Executor) Simulate(b *core.Board, m core.Move, actor core.Owner) (Outcome, error) {
	next := b.Clone()
	m.Apply(next)

	res, err := x.light.ResolveFrom(next, actor)
	if err != nil {
		return Outcome{}, fmt.Errorf("after %s: %w", m, err)
	}
	rules.ApplyLight(next, res)

	out := Outcome{Move: m, Mover: actor, Board: next, Light: res, Winner: core.OwnerNone}
	switch {
	case res.Destroyed != nil:
		out.Reward = x.rewards.Destroyed(actor, res.Destroyed.Piece)
	case res.Blocked != nil:
		out.Reward = x.rewards.Block
	}
	if winner, ok := rules.Winner(next); ok {
		out.Winner = winner
		out.Reward = x.rewards.Terminal(actor, winner)
	}
	out.Reward += x.rewards.PerRound
	return out, nil
}

// WithDraw turns out into a drawn game: the mover receives the draw reward instead of
// whatever the move itself earned.
func (x *Executor) WithDraw(out Outcome) Outcome {
	out.Draw = true
	out.Reward = x.rewards.Draw + x.rewards.PerRound
	return out
}

var defaultExecutor = NewExecutor(DefaultRewards())

// LegalMoves lists owner's legal moves on b.
func LegalMoves(b *core.Board, owner core.Owner) []core.Move {
	return defaultExecutor.validator.LegalMoves(b, owner)
}

// Apply plays m for the owner of the moving piece and returns the new board.
func Apply(b *core.Board, m core.Move) (*core.Board, error) {
	return defaultExecutor.Execute(b, m, m.Piece.Owner)
}

// IsGameOver reports the winner of a single position. Repetition draws need the game
// history and are only reported by Engine.IsGameOver.
func IsGameOver(b *core.Board) Status {
	winner, ok := rules.Winner(b)
	if !ok {
		return Status{Winner: core.OwnerNone}
	}
	return Status{Over: true, Winner: winner}
}
