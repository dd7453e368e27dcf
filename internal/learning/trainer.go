package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/common"
	"github.com/mitchelldurbincs/tonatiuh/internal/experience"
	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/states"
	"github.com/mitchelldurbincs/tonatiuh/internal/search"
)

const lossHistorySize = 1000

// TrainerConfig holds the hyperparameters of a training run. Zero fields other than
// Gamma and TraineeFirst take the defaults of DefaultTrainerConfig.
type TrainerConfig struct {
	// RunID tags events and stored transitions; generated when empty.
	RunID string

	Width, Height int
	// Position is the notation of every episode's opening; empty selects the standard
	// opening.
	Position string

	Gamma           float64
	BatchSize       int
	BufferCapacity  int
	MinBufferFill   int
	TargetSyncEvery int
	Epsilon         EpsilonSchedule

	// TraineeFirst makes the trainee the side to move in Position. Otherwise the
	// opponent's opening move is played before the trainee's first decision.
	TraineeFirst bool

	Rewards  game.RewardTable
	Learning experience.RewardConfig
	Draw     rules.DrawConfig

	// Persistence receives the transitions a buffer clear discards. May be nil.
	Persistence experience.PersistenceLayer
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Width:           core.DefaultWidth,
		Height:          core.DefaultHeight,
		Position:        notation.Standard7x6,
		Gamma:           0.95,
		BatchSize:       32,
		BufferCapacity:  experience.DefaultCapacity,
		MinBufferFill:   500,
		TargetSyncEvery: 200,
		Epsilon:         DefaultEpsilonSchedule(),
		TraineeFirst:    true,
		Rewards:         game.DefaultRewards(),
		Learning:        experience.DefaultRewardConfig(),
	}
}

func (c TrainerConfig) withDefaults() TrainerConfig {
	d := DefaultTrainerConfig()
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Width == 0 && c.Height == 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.Position == "" {
		c.Position = d.Position
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = d.BufferCapacity
	}
	if c.MinBufferFill == 0 {
		c.MinBufferFill = min(d.MinBufferFill, c.BufferCapacity)
	}
	if c.TargetSyncEvery == 0 {
		c.TargetSyncEvery = d.TargetSyncEvery
	}
	if c.Epsilon == (EpsilonSchedule{}) {
		c.Epsilon = d.Epsilon
	}
	if c.Rewards == (game.RewardTable{}) {
		c.Rewards = d.Rewards
	}
	if c.Learning == (experience.RewardConfig{}) {
		c.Learning = d.Learning
	}
	return c
}

// Validate checks the hyperparameters.
func (c TrainerConfig) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma %v outside [0,1]", c.Gamma)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MinBufferFill < 1 || c.MinBufferFill > c.BufferCapacity {
		return fmt.Errorf("min buffer fill %d outside [1,%d]", c.MinBufferFill, c.BufferCapacity)
	}
	if c.TargetSyncEvery < 1 {
		return fmt.Errorf("target sync interval must be positive, got %d", c.TargetSyncEvery)
	}
	return c.Epsilon.Validate()
}

// Stats summarizes a training run.
type Stats struct {
	RunID        string
	Episodes     int
	Wins         int
	Draws        int
	Losses       int
	Steps        int
	Updates      int
	Epsilon      float64
	MeanLoss     float64
	BufferClears int64
	Duration     time.Duration
}

// Trainer runs episodes of the trainee against an opponent policy and fits the online
// approximator from replayed transitions. It is not safe for concurrent use.
type Trainer struct {
	cfg        TrainerConfig
	online     Approximator
	target     Approximator
	opponent   search.Policy
	exec       *game.Executor
	serializer *experience.Serializer
	buffer     *experience.ReplayBuffer
	machine    *states.StateMachine
	publisher  events.Publisher
	start      notation.Position
	rng        *rand.Rand
	logger     zerolog.Logger

	steps   int
	updates int
	losses  []float64
}

// NewTrainer wires a trainer. target is overwritten with online's parameters.
// publisher may be nil; a nil rng is seeded from the clock.
func NewTrainer(cfg TrainerConfig, online, target Approximator, opponent search.Policy, publisher events.Publisher, rng *rand.Rand, logger zerolog.Logger) (*Trainer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if online == nil || target == nil || opponent == nil {
		return nil, errors.New("trainer needs online and target approximators and an opponent")
	}
	start, err := notation.Decode(cfg.Position, cfg.Height, cfg.Width)
	if err != nil {
		return nil, err
	}
	if err := online.CloneInto(target); err != nil {
		return nil, fmt.Errorf("sync target: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}

	logger = logger.With().Str("component", "Trainer").Logger()
	t := &Trainer{
		cfg:        cfg,
		online:     online,
		target:     target,
		opponent:   opponent,
		exec:       game.NewExecutor(cfg.Rewards),
		serializer: experience.NewSerializer(),
		buffer:     experience.NewReplayBuffer(cfg.BufferCapacity, logger),
		machine:    states.NewStateMachine(states.NewTrainingContext(cfg.RunID, logger), publisher),
		publisher:  publisher,
		start:      start,
		rng:        rng,
		logger:     logger.With().Str("run_id", cfg.RunID).Logger(),
	}
	if cfg.Persistence != nil {
		t.buffer.OnOverflow(t.persist)
	}
	return t, nil
}

func (t *Trainer) Config() TrainerConfig { return t.cfg }

func (t *Trainer) Phase() states.Phase { return t.machine.CurrentPhase() }

// History returns the lifecycle transitions of the current run.
func (t *Trainer) History() []states.Transition { return t.machine.History() }

func (t *Trainer) Buffer() *experience.ReplayBuffer { return t.buffer }

// Online returns the approximator being trained.
func (t *Trainer) Online() Approximator { return t.online }

// Train plays totalEpisodes episodes starting from startEpsilon. It returns early,
// without error, when ctx is cancelled between steps. Any other failure moves the run
// to the error phase and is returned.
func (t *Trainer) Train(ctx context.Context, totalEpisodes int, startEpsilon float64) (Stats, error) {
	if err := t.machine.Reset(); err != nil {
		return Stats{}, err
	}
	tc := t.machine.Context()
	tc.TotalEpisodes = totalEpisodes
	tc.Epsilon = startEpsilon
	if err := t.machine.TransitionTo(states.PhasePreparing, "Train requested"); err != nil {
		return Stats{}, err
	}
	t.steps, t.updates, t.losses = 0, 0, t.losses[:0]

	err := t.run(ctx)
	switch {
	case err == nil:
	case isCancellation(err):
		err = t.machine.TransitionTo(states.PhaseStopped, "Cancelled")
	default:
		if ferr := t.machine.Fail(err); ferr != nil {
			t.logger.Error().Err(ferr).Msg("Failed to enter error phase")
		}
	}

	stats := t.stats()
	if t.publisher != nil {
		t.publisher.Publish(events.NewTrainingStoppedEvent(t.cfg.RunID, stats.Episodes, stats.Wins, stats.Draws, stats.Losses, err))
	}
	return stats, err
}

func (t *Trainer) run(ctx context.Context) error {
	tc := t.machine.Context()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.machine.TransitionTo(states.PhaseRunning, "Episode prepared"); err != nil {
			return err
		}
		ep, err := t.playEpisode(ctx, tc.Episode, tc.Epsilon)
		if err != nil {
			return err
		}

		switch ep.outcome {
		case outcomeWin:
			tc.Wins++
		case outcomeLoss:
			tc.Losses++
		default:
			tc.Draws++
		}
		if t.publisher != nil {
			t.publisher.Publish(events.NewEpisodeCompletedEvent(t.cfg.RunID, tc.Episode, ep.outcome, ep.steps, ep.reward, tc.Epsilon, ep.meanLoss()))
		}
		t.logger.Debug().
			Int("episode", tc.Episode).
			Str("outcome", ep.outcome).
			Int("steps", ep.steps).
			Float64("reward", ep.reward).
			Float64("epsilon", tc.Epsilon).
			Msg("Episode finished")
		tc.Epsilon = t.cfg.Epsilon.Next(tc.Epsilon)

		if err := t.machine.TransitionTo(states.PhaseEpisodeComplete, ep.outcome); err != nil {
			return err
		}
		if !tc.EpisodesLeft() {
			return t.machine.TransitionTo(states.PhaseStopped, "All episodes played")
		}
		if err := t.machine.TransitionTo(states.PhasePreparing, "Next episode"); err != nil {
			return err
		}
	}
}

const (
	outcomeWin  = "win"
	outcomeLoss = "loss"
	outcomeDraw = "draw"
)

type episodeResult struct {
	outcome string
	steps   int
	reward  float64
	losses  []float64
}

func (e episodeResult) meanLoss() float64 { return common.Mean(e.losses) }

// playEpisode runs one game from the opening to a win, loss or draw.
func (t *Trainer) playEpisode(ctx context.Context, episode int, eps float64) (episodeResult, error) {
	board := t.start.Board.Clone()
	trainee := t.start.Next
	opponent := trainee.Opponent()
	draws := rules.NewDrawDetector(t.cfg.Draw)
	var res episodeResult

	if !t.cfg.TraineeFirst {
		trainee, opponent = opponent, trainee
		reply, err := t.reply(ctx, board, opponent, draws)
		if err != nil {
			return res, err
		}
		board = reply.Board
		switch {
		case reply.HasWinner():
			res.outcome = outcomeFor(trainee, reply.Winner)
			return res, nil
		case draws.Commit(board, trainee):
			res.outcome = outcomeDraw
			return res, nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		state := t.serializer.BoardToTensor(board)
		legal := t.serializer.LegalActions(board, trainee)
		if len(legal) == 0 {
			return res, core.Invariantf("%s has no legal move in a running game", trainee)
		}
		q, err := t.online.Predict(state)
		if err != nil {
			return res, fmt.Errorf("predict: %w", err)
		}
		action, _, err := SelectAction(t.rng, q, legal, eps)
		if err != nil {
			return res, err
		}
		move, err := t.serializer.ActionSpace(board.W, board.H).MoveFromIndex(board, trainee, action, t.exec.Validator())
		if err != nil {
			return res, core.Invariantf("legal action %d does not decode: %v", action, err)
		}

		step, err := t.step(ctx, board, move, trainee, draws)
		if err != nil {
			return res, err
		}
		board = step.Own.Board
		if step.Reply != nil {
			board = step.Reply.Board
		}

		reward := experience.CalculateReward(trainee, step, t.cfg.Learning)
		terminal := step.Terminal()
		var nextLegal []int
		if !terminal {
			nextLegal = t.serializer.LegalActions(board, trainee)
		}
		tr := experience.NewTransition(t.cfg.RunID, episode, res.steps, state, action, reward,
			t.serializer.BoardToTensor(board), nextLegal, terminal)
		if _, err := t.buffer.Add(tr); err != nil {
			return res, err
		}

		res.steps++
		res.reward += float64(reward)
		t.steps++
		if t.buffer.Size() >= t.cfg.MinBufferFill {
			loss, err := t.learn()
			if err != nil {
				return res, err
			}
			res.losses = append(res.losses, loss)
		}
		if t.steps%t.cfg.TargetSyncEvery == 0 {
			if err := t.online.CloneInto(t.target); err != nil {
				return res, fmt.Errorf("sync target: %w", err)
			}
			t.logger.Debug().Int("steps", t.steps).Msg("Target network synced")
		}

		if terminal {
			switch {
			case step.Draw:
				res.outcome = outcomeDraw
			case step.Reply != nil:
				res.outcome = outcomeFor(trainee, step.Reply.Winner)
			default:
				res.outcome = outcomeFor(trainee, step.Own.Winner)
			}
			return res, nil
		}
	}
}

// step plays the trainee's move and, unless it ended the game, the opponent's reply.
func (t *Trainer) step(ctx context.Context, board *core.Board, move core.Move, trainee core.Owner, draws *rules.DrawDetector) (experience.Step, error) {
	own, err := t.exec.Simulate(board, move, trainee)
	if err != nil {
		return experience.Step{}, err
	}
	s := experience.Step{Own: own}
	if own.HasWinner() {
		return s, nil
	}
	if draws.Commit(own.Board, trainee.Opponent()) {
		s.Draw = true
		return s, nil
	}

	reply, err := t.reply(ctx, own.Board, trainee.Opponent(), draws)
	if err != nil {
		return experience.Step{}, err
	}
	s.Reply = &reply
	if !reply.HasWinner() && draws.Commit(reply.Board, trainee) {
		s.Draw = true
	}
	return s, nil
}

// reply asks the opponent for a move and plays it, rejecting illegal choices.
// Opponents that search are shown the episode's repetition history.
func (t *Trainer) reply(ctx context.Context, board *core.Board, owner core.Owner, draws *rules.DrawDetector) (game.Outcome, error) {
	var m core.Move
	var err error
	if hc, ok := t.opponent.(game.HistoryChooser); ok {
		m, err = hc.ChooseMoveWithHistory(ctx, board, owner, draws.Clone())
	} else {
		m, err = t.opponent.ChooseMove(ctx, board, owner)
	}
	if err != nil {
		return game.Outcome{}, fmt.Errorf("opponent move: %w", err)
	}
	out, err := t.exec.ExecuteWithReward(board, m, owner)
	if err != nil {
		return game.Outcome{}, fmt.Errorf("opponent played %s: %w", m, err)
	}
	return out, nil
}

// learn fits the online approximator on one sampled batch.
func (t *Trainer) learn() (float64, error) {
	batch, err := t.buffer.Sample(t.cfg.BatchSize, t.rng)
	if err != nil {
		return 0, err
	}
	states := make([][]float32, len(batch))
	actions := make([]int, len(batch))
	targets := make([]float32, len(batch))

	var nextStates [][]float32
	var bootstrap []int
	for i, tr := range batch {
		states[i] = tr.State
		actions[i] = tr.Action
		targets[i] = tr.Reward
		if !tr.Terminal && len(tr.NextLegal) > 0 {
			nextStates = append(nextStates, tr.NextState)
			bootstrap = append(bootstrap, i)
		}
	}
	if len(nextStates) > 0 {
		qs, err := t.target.PredictBatch(nextStates)
		if err != nil {
			return 0, fmt.Errorf("predict targets: %w", err)
		}
		for j, i := range bootstrap {
			targets[i] += float32(t.cfg.Gamma) * maxLegal(qs[j], batch[i].NextLegal)
		}
	}
	if err := CheckTargets(targets); err != nil {
		return 0, err
	}

	loss, err := t.online.Fit(states, actions, targets)
	if err != nil {
		return 0, fmt.Errorf("fit batch: %w", err)
	}
	t.updates++
	t.losses = append(t.losses, loss)
	if len(t.losses) > lossHistorySize {
		t.losses = t.losses[len(t.losses)-lossHistorySize:]
	}
	return loss, nil
}

func (t *Trainer) persist(discarded []experience.Transition) {
	if err := t.cfg.Persistence.Write(context.Background(), discarded); err != nil {
		t.logger.Warn().Err(err).Int("transitions", len(discarded)).Msg("Failed to persist cleared transitions")
	}
}

func (t *Trainer) stats() Stats {
	tc := t.machine.Context()
	return Stats{
		RunID:        t.cfg.RunID,
		Episodes:     tc.Episode,
		Wins:         tc.Wins,
		Draws:        tc.Draws,
		Losses:       tc.Losses,
		Steps:        t.steps,
		Updates:      t.updates,
		Epsilon:      tc.Epsilon,
		MeanLoss:     common.Mean(t.losses),
		BufferClears: t.buffer.Stats().Clears,
		Duration:     tc.Elapsed(),
	}
}

func outcomeFor(trainee, winner core.Owner) string {
	if winner == trainee {
		return outcomeWin
	}
	return outcomeLoss
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
