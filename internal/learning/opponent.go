package learning

import (
	"context"
	"time"

	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

// SafeRandomOpponent plays uniformly among the moves that leave the trainee without
// an immediate winning reply. When every move loses at once it plays any legal move.
type SafeRandomOpponent struct {
	exec *game.Executor
	rng  *rand.Rand
}

// NewSafeRandomOpponent creates the opponent. A nil rng is seeded from the clock.
func NewSafeRandomOpponent(rewards game.RewardTable, rng *rand.Rand) *SafeRandomOpponent {
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &SafeRandomOpponent{exec: game.NewExecutor(rewards), rng: rng}
}

func (o *SafeRandomOpponent) ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error) {
	if err := ctx.Err(); err != nil {
		return core.Move{}, err
	}
	if _, over := rules.Winner(b); over {
		return core.Move{}, core.ErrGameOver
	}
	moves := o.exec.Validator().LegalMoves(b, owner)
	if len(moves) == 0 {
		return core.Move{}, core.Invariantf("%s has no legal move in a running game", owner)
	}

	safe := make([]core.Move, 0, len(moves))
	for _, m := range moves {
		ok, err := o.safe(b, m, owner)
		if err != nil {
			return core.Move{}, err
		}
		if ok {
			safe = append(safe, m)
		}
	}
	if len(safe) == 0 {
		safe = moves
	}
	return safe[o.rng.Intn(len(safe))], nil
}

// safe reports whether m neither loses outright nor lets the other side win next move.
func (o *SafeRandomOpponent) safe(b *core.Board, m core.Move, owner core.Owner) (bool, error) {
	out, err := o.exec.Simulate(b, m, owner)
	if err != nil {
		return false, err
	}
	if out.HasWinner() {
		return out.Winner == owner, nil
	}
	trainee := owner.Opponent()
	for _, reply := range o.exec.Validator().LegalMoves(out.Board, trainee) {
		r, err := o.exec.Simulate(out.Board, reply, trainee)
		if err != nil {
			return false, err
		}
		if r.Winner == trainee {
			return false, nil
		}
	}
	return true, nil
}
