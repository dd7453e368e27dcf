package learning

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

var (
	// ErrNonFiniteTarget marks a NaN or infinite training target. Training halts.
	ErrNonFiniteTarget = errors.New("non-finite training target")
	// ErrShapeMismatch is returned when inputs do not match the approximator's shape.
	ErrShapeMismatch = errors.New("approximator shape mismatch")
	// ErrIncompatibleModel is returned when copying between different approximators.
	ErrIncompatibleModel = errors.New("incompatible approximator")
)

// Approximator maps an encoded board to one value per action index. The trainer owns
// its approximators; implementations need not be safe for concurrent use.
type Approximator interface {
	// Predict returns the action values for one encoded board.
	Predict(state []float32) ([]float32, error)
	PredictBatch(states [][]float32) ([][]float32, error)
	// Fit moves Q(states[i], actions[i]) toward targets[i] and returns the batch loss
	// before the update.
	Fit(states [][]float32, actions []int, targets []float32) (float64, error)
	// CloneInto copies the parameters into dst, which must have the same shape.
	CloneInto(dst Approximator) error

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// CheckTargets fails on the first non-finite target.
func CheckTargets(targets []float32) error {
	for i, t := range targets {
		v := float64(t)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("target %d is %v: %w", i, t, ErrNonFiniteTarget)
		}
	}
	return nil
}

// FitVectors fits a on one target value per action for each state. Entries equal to
// the current prediction carry no error, so only the differing (state, action) pairs
// are passed to Fit. The returned loss covers those pairs; it is zero when none differ.
func FitVectors(a Approximator, states [][]float32, targets [][]float32) (float64, error) {
	if len(states) != len(targets) {
		return 0, fmt.Errorf("%d states but %d target vectors: %w", len(states), len(targets), ErrShapeMismatch)
	}
	current, err := a.PredictBatch(states)
	if err != nil {
		return 0, err
	}
	var (
		pairStates  [][]float32
		pairActions []int
		pairTargets []float32
	)
	for i, row := range targets {
		if len(row) != len(current[i]) {
			return 0, fmt.Errorf("target vector %d has %d values, want %d: %w", i, len(row), len(current[i]), ErrShapeMismatch)
		}
		if err := CheckTargets(row); err != nil {
			return 0, fmt.Errorf("state %d: %w", i, err)
		}
		for action, v := range row {
			if v == current[i][action] {
				continue
			}
			pairStates = append(pairStates, states[i])
			pairActions = append(pairActions, action)
			pairTargets = append(pairTargets, v)
		}
	}
	if len(pairStates) == 0 {
		return 0, nil
	}
	return a.Fit(pairStates, pairActions, pairTargets)
}

// SaveModel writes an approximator to path, creating parent directories.
func SaveModel(a Approximator, path string) error {
	data, err := a.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadModel reads path into a.
func LoadModel(a Approximator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	if err := a.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("decode model %s: %w", path, err)
	}
	return nil
}
