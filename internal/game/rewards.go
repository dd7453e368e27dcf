package game

import "github.com/mitchelldurbincs/tonatiuh/internal/game/core"

// RewardTable holds the scalar rewards of a single move, seen from the mover.
type RewardTable struct {
	Win  int `mapstructure:"win"`
	Loss int `mapstructure:"loss"`
	Draw int `mapstructure:"draw"`
	// LearningDraw replaces Draw for the trainer's terminal draws.
	LearningDraw int `mapstructure:"learning_draw"`

	DestroyOwn      int `mapstructure:"destroy_own"`
	DestroyOpponent int `mapstructure:"destroy_opponent"`
	// Kind adjustments added on top of DestroyOwn / DestroyOpponent.
	OwnWall        int `mapstructure:"own_wall"`
	OwnAngler      int `mapstructure:"own_angler"`
	OpponentWall   int `mapstructure:"opponent_wall"`
	OpponentAngler int `mapstructure:"opponent_angler"`

	Block    int `mapstructure:"block"`
	PerRound int `mapstructure:"per_round"`
}

func DefaultRewards() RewardTable {
	return RewardTable{
		Win:             10000,
		Loss:            -10000,
		Draw:            -1000,
		LearningDraw:    -5000,
		DestroyOwn:      -200,
		DestroyOpponent: 100,
		OwnWall:         -20,
		OwnAngler:       -50,
		OpponentWall:    20,
		OpponentAngler:  50,
		Block:           0,
		PerRound:        0,
	}
}

// Destroyed is the reward for the mover when the ray removed p.
func (t RewardTable) Destroyed(mover core.Owner, p core.Piece) int {
	if p.Owner == mover {
		r := t.DestroyOwn
		switch p.Kind {
		case core.Wall:
			r += t.OwnWall
		case core.Angler:
			r += t.OwnAngler
		}
		return r
	}
	r := t.DestroyOpponent
	switch p.Kind {
	case core.Wall:
		r += t.OpponentWall
	case core.Angler:
		r += t.OpponentAngler
	}
	return r
}

// Terminal is the reward for the mover when the game ended with winner.
func (t RewardTable) Terminal(mover, winner core.Owner) int {
	if winner == mover {
		return t.Win
	}
	return t.Loss
}
