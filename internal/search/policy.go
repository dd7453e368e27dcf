package search

import (
	"context"
	"time"

	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

// Policy picks a move for owner on b. Implementations never modify b.
type Policy interface {
	ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error)

func (f PolicyFunc) ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error) {
	return f(ctx, b, owner)
}

// RandomPolicy picks uniformly among the legal moves.
type RandomPolicy struct {
	validator *rules.MoveValidator
	rng       *rand.Rand
}

// NewRandomPolicy creates a random policy. A nil rng is seeded from the clock.
func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &RandomPolicy{validator: rules.NewMoveValidator(), rng: rng}
}

func (p *RandomPolicy) ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error) {
	if err := ctx.Err(); err != nil {
		return core.Move{}, err
	}
	if _, over := rules.Winner(b); over {
		return core.Move{}, core.ErrGameOver
	}
	moves := p.validator.LegalMoves(b, owner)
	if len(moves) == 0 {
		return core.Move{}, core.Invariantf("%s has no legal move in a running game", owner)
	}
	return moves[p.rng.Intn(len(moves))], nil
}
