package search

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/common"
	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

const (
	infinity = math.MaxInt32
	// rootWindow keeps the root alpha one below the best value so later moves that tie
	// it are still scored exactly.
	rootWindow = 1
)

// errTimeUp stops a pass whose deadline has passed. It never leaves the package.
var errTimeUp = errors.New("search time budget exhausted")

// Result describes one root search.
type Result struct {
	Move  core.Move
	Value int
	// Depth is the deepest fully completed pass.
	Depth int
	Nodes int
	// Ties is how many root moves shared the best value before the one-ply re-score.
	Ties int
}

// Engine is the minimax search. Leaf values are the sum of the rewards along the line,
// seen from the searching side, plus the static evaluation when enabled. An Engine
// owns its random source and is not safe for concurrent use.
type Engine struct {
	opts      Options
	exec      *game.Executor
	validator *rules.MoveValidator
	rng       *rand.Rand
	now       func() time.Time
	logger    zerolog.Logger
}

// NewEngine creates a search engine. A nil rng is seeded from the clock.
func NewEngine(opts Options, rewards game.RewardTable, rng *rand.Rand, logger zerolog.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	exec := game.NewExecutor(rewards)
	return &Engine{
		opts:      opts.withDefaults(),
		exec:      exec,
		validator: exec.Validator(),
		rng:       rng,
		now:       time.Now,
		logger:    logger.With().Str("component", "SearchEngine").Logger(),
	}
}

func (e *Engine) Options() Options { return e.opts }

// ChooseMove returns the best move for owner.
func (e *Engine) ChooseMove(ctx context.Context, b *core.Board, owner core.Owner) (core.Move, error) {
	return e.ChooseMoveWithHistory(ctx, b, owner, nil)
}

// ChooseMoveWithHistory is ChooseMove with the game's repetition history, so lines
// that repeat a position or reach the ply cap are scored as draws.
func (e *Engine) ChooseMoveWithHistory(ctx context.Context, b *core.Board, owner core.Owner, draws *rules.DrawDetector) (core.Move, error) {
	res, err := e.SearchWithHistory(ctx, b, owner, draws)
	if err != nil {
		return core.Move{}, err
	}
	return res.Move, nil
}

// run is the state of one Search call.
type run struct {
	ctx      context.Context
	root     core.Owner
	draws    *rules.DrawDetector
	salt     uint64
	deadline time.Time
	nodes    int
}

// Search scores every root move and picks the best one. With iterative deepening the
// last fully completed pass decides; a pass cut short by the time budget or by ctx is
// discarded. The first pass always runs to completion unless ctx is cancelled.
func (e *Engine) Search(ctx context.Context, b *core.Board, owner core.Owner) (Result, error) {
	return e.SearchWithHistory(ctx, b, owner, nil)
}

// SearchWithHistory is Search on top of the committed positions in draws, which may
// be nil. draws is used as scratch space and is restored before returning.
func (e *Engine) SearchWithHistory(ctx context.Context, b *core.Board, owner core.Owner, draws *rules.DrawDetector) (Result, error) {
	if _, over := rules.Winner(b); over {
		return Result{}, core.ErrGameOver
	}
	moves := e.orderedMoves(b, owner)
	if len(moves) == 0 {
		return Result{}, core.Invariantf("%s has no legal move in a running game", owner)
	}

	r := &run{ctx: ctx, root: owner, draws: draws, salt: e.rng.Uint64()}
	start := e.now()

	var completed []int
	completedDepth := 0
	if !e.opts.IterativeDeepening {
		completed = make([]int, len(moves))
		if err := e.rootPass(r, b, moves, e.opts.Depth, completed); err != nil {
			return Result{}, err
		}
		completedDepth = e.opts.Depth
	} else {
		for depth := 1; depth <= e.opts.Depth; depth++ {
			if depth == 2 && e.opts.TimeBudget > 0 {
				r.deadline = start.Add(e.opts.TimeBudget)
			}
			started := make([]int, len(moves))
			err := e.rootPass(r, b, moves, depth, started)
			if err != nil {
				if completed != nil && (errors.Is(err, errTimeUp) || ctx.Err() != nil) {
					break
				}
				return Result{}, err
			}
			completed, completedDepth = started, depth
		}
	}

	res := e.pickRoot(r, b, moves, completed)
	res.Depth = completedDepth
	res.Nodes = r.nodes

	e.logger.Debug().
		Str("player", owner.String()).
		Str("move", res.Move.String()).
		Int("value", res.Value).
		Int("depth", res.Depth).
		Int("nodes", res.Nodes).
		Int("ties", res.Ties).
		Dur("elapsed", e.now().Sub(start)).
		Msg("Search finished")
	return res, nil
}

// pickRoot takes the moves with the maximal value and breaks ties with the one-ply
// evaluation, then by order.
func (e *Engine) pickRoot(r *run, b *core.Board, moves []core.Move, values []int) Result {
	owner := r.root
	best := common.ArgMaxes(values)
	res := Result{Move: moves[best[0]], Value: values[best[0]], Ties: len(best)}
	if len(best) == 1 {
		return res
	}

	scores := make([]int, len(best))
	for i, idx := range best {
		out, err := e.simulate(r, b, moves[idx], owner)
		if err != nil {
			// Already simulated once during the search; treat as unrankable.
			scores[i] = -infinity
			continue
		}
		scores[i] = out.RewardFor(owner) + e.evaluate(r, out, owner)
	}
	res.Move = moves[best[common.ArgMaxes(scores)[0]]]
	return res
}

// rootPass fills values with the depth-ply value of each root move.
func (e *Engine) rootPass(r *run, b *core.Board, moves []core.Move, depth int, values []int) error {
	alpha, best := -infinity, -infinity
	for i, m := range moves {
		if err := e.poll(r); err != nil {
			return err
		}
		v, err := e.child(r, b, m, r.root, depth, alpha, infinity, 0)
		if err != nil {
			return err
		}
		values[i] = v
		if v > best {
			best = v
			if e.opts.Pruning {
				alpha = best - rootWindow
			}
		}
	}
	return nil
}

// child plays m for toMove and returns the value of the resulting line. acc is the
// reward collected on the way here.
func (e *Engine) child(r *run, b *core.Board, m core.Move, toMove core.Owner, depth, alpha, beta, acc int) (int, error) {
	out, err := e.simulate(r, b, m, toMove)
	if err != nil {
		return 0, err
	}
	r.nodes++
	v := acc + out.RewardFor(r.root)
	if out.Terminal() {
		return v, nil
	}
	if depth <= 1 {
		if e.opts.Heuristic {
			v += e.evaluate(r, out, r.root)
		}
		return v, nil
	}
	if r.draws != nil {
		key, _ := r.draws.Push(out.Board, toMove.Opponent())
		defer r.draws.Pop(key)
	}
	return e.minimax(r, out.Board, toMove.Opponent(), depth-1, alpha, beta, v)
}

// simulate plays m and marks the outcome drawn when the resulting position would
// complete a repetition or reach the ply cap.
func (e *Engine) simulate(r *run, b *core.Board, m core.Move, toMove core.Owner) (game.Outcome, error) {
	out, err := e.exec.Simulate(b, m, toMove)
	if err != nil || out.HasWinner() || r.draws == nil {
		return out, err
	}
	if r.draws.Preview(out.Board, toMove.Opponent()) {
		out = e.exec.WithDraw(out)
	}
	return out, nil
}

// minimax returns the value of b with toMove to play. The root side maximizes.
func (e *Engine) minimax(r *run, b *core.Board, toMove core.Owner, depth, alpha, beta, acc int) (int, error) {
	maximizing := toMove == r.root
	best := infinity
	if maximizing {
		best = -infinity
	}
	expanded := false

	err := e.eachChild(b, toMove, func(m core.Move) (bool, error) {
		if err := e.poll(r); err != nil {
			return false, err
		}
		v, err := e.child(r, b, m, toMove, depth, alpha, beta, acc)
		if err != nil {
			return false, err
		}
		expanded = true
		if maximizing {
			best = max(best, v)
			alpha = max(alpha, best)
		} else {
			best = min(best, v)
			beta = min(beta, best)
		}
		return !(e.opts.Pruning && beta <= alpha), nil
	})
	if err != nil {
		return 0, err
	}
	if !expanded {
		// A side with pieces can always turn its Sun, so this only happens on boards
		// missing a Sun, which Simulate reports first.
		return acc, nil
	}
	return best, nil
}

func (e *Engine) poll(r *run) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if !r.deadline.IsZero() && !e.now().Before(r.deadline) {
		return errTimeUp
	}
	return nil
}
