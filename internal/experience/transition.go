package experience

import (
	"time"

	"github.com/google/uuid"
)

// Transition is one trainee decision: the encoded position, the chosen action index,
// the shaped reward and the position the trainee faces next.
type Transition struct {
	ID      string `json:"id"`
	RunID   string `json:"run_id"`
	Episode int    `json:"episode"`
	Step    int    `json:"step"`

	State  []float32 `json:"state"`
	Action int       `json:"action"`
	Reward float32   `json:"reward"`

	NextState []float32 `json:"next_state"`
	// NextLegal are the trainee's legal action indices in NextState. Targets bootstrap
	// over these only. Empty when Terminal.
	NextLegal []int `json:"next_legal,omitempty"`
	Terminal  bool  `json:"terminal"`

	CollectedAt time.Time `json:"collected_at"`
}

// NewTransition stamps a transition with a fresh ID and the current time.
func NewTransition(runID string, episode, step int, state []float32, action int, reward float32, next []float32, nextLegal []int, terminal bool) Transition {
	return Transition{
		ID:          uuid.NewString(),
		RunID:       runID,
		Episode:     episode,
		Step:        step,
		State:       state,
		Action:      action,
		Reward:      reward,
		NextState:   next,
		NextLegal:   nextLegal,
		Terminal:    terminal,
		CollectedAt: time.Now(),
	}
}
