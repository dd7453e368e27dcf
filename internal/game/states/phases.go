package states

import (
	"fmt"
	"slices"
)

// Phase is a step of the training lifecycle
type Phase int

const (
	// PhaseIdle - no run in progress
	PhaseIdle Phase = iota

	// PhasePreparing - setting up the next episode's board and opening move
	PhasePreparing

	// PhaseRunning - stepping the current episode
	PhaseRunning

	// PhaseEpisodeComplete - terminal position reached, tallies and epsilon updated
	PhaseEpisodeComplete

	// PhaseStopped - all episodes played or the run was cancelled
	PhaseStopped

	// PhaseError - a step failed; the run halts here until reset
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhasePreparing:
		return "Preparing"
	case PhaseRunning:
		return "Running"
	case PhaseEpisodeComplete:
		return "EpisodeComplete"
	case PhaseStopped:
		return "Stopped"
	case PhaseError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// IsTerminal returns true if the run cannot continue from this phase without a reset
func (p Phase) IsTerminal() bool {
	return p == PhaseStopped || p == PhaseError
}

// CanStep returns true if the trainer may take an environment step in this phase
func (p Phase) CanStep() bool {
	return p == PhaseRunning
}

// AllowedTransitions returns the valid phases this phase can transition to
func (p Phase) AllowedTransitions() []Phase {
	switch p {
	case PhaseIdle:
		return []Phase{PhasePreparing, PhaseError}
	case PhasePreparing:
		return []Phase{PhaseRunning, PhaseStopped, PhaseError}
	case PhaseRunning:
		return []Phase{PhaseEpisodeComplete, PhaseStopped, PhaseError}
	case PhaseEpisodeComplete:
		return []Phase{PhasePreparing, PhaseStopped, PhaseError}
	case PhaseStopped, PhaseError:
		return []Phase{PhaseIdle}
	default:
		return []Phase{}
	}
}

func (p Phase) CanTransitionTo(target Phase) bool {
	return slices.Contains(p.AllowedTransitions(), target)
}

// ParsePhase converts a string to a Phase
func ParsePhase(s string) (Phase, error) {
	for p := PhaseIdle; p <= PhaseError; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("unknown phase %q", s)
}
