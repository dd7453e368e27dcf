package learning

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/experience"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

// Agent plays the greedy move of a trained approximator. It satisfies search.Policy
// and is registered as the "dqn" bot.
type Agent struct {
	model      Approximator
	serializer *experience.Serializer
	validator  *rules.MoveValidator
	rng        *rand.Rand
}

// NewAgent wraps model. rng breaks ties between equal values; nil takes the first.
func NewAgent(model Approximator, rng *rand.Rand) *Agent {
	return &Agent{
		model:      model,
		serializer: experience.NewSerializer(),
		validator:  rules.NewMoveValidator(),
		rng:        rng,
	}
}

// LoadAgent reads a linear model from path.
func LoadAgent(path string, rng *rand.Rand) (*Agent, error) {
	m := &LinearApproximator{}
	if err := LoadModel(m, path); err != nil {
		return nil, err
	}
	return NewAgent(m, rng), nil
}

func (a *Agent) Model() Approximator { return a.model }

func (a *Agent) ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error) {
	if err := ctx.Err(); err != nil {
		return core.Move{}, err
	}
	if _, over := rules.Winner(b); over {
		return core.Move{}, core.ErrGameOver
	}
	legal := a.serializer.LegalActions(b, owner)
	if len(legal) == 0 {
		return core.Move{}, core.Invariantf("%s has no legal move in a running game", owner)
	}
	q, err := a.model.Predict(a.serializer.BoardToTensor(b))
	if err != nil {
		return core.Move{}, fmt.Errorf("predict: %w", err)
	}
	idx, err := greedyAction(a.rng, q, legal)
	if err != nil {
		return core.Move{}, err
	}
	return a.serializer.ActionSpace(b.W, b.H).MoveFromIndex(b, owner, idx, a.validator)
}
