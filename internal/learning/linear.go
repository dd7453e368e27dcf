package learning

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

const (
	linearMagic   = "TQLA"
	linearVersion = uint32(1)
)

var errBadModelFile = errors.New("malformed model file")

// LinearApproximator is Q(s, a) = w[a]·s + b[a], trained by plain SGD on squared
// error. It is the reference approximator: small enough to train on a laptop and to
// store as a flat little-endian file.
type LinearApproximator struct {
	inputs       int
	actions      int
	learningRate float32
	weights      []float32 // actions × inputs, row per action
	bias         []float32
}

// NewLinearApproximator creates a model with zero weights. A non-nil rng adds small
// random weights instead.
func NewLinearApproximator(inputs, actions int, learningRate float64, rng *rand.Rand) *LinearApproximator {
	m := &LinearApproximator{
		inputs:       inputs,
		actions:      actions,
		learningRate: float32(learningRate),
		weights:      make([]float32, inputs*actions),
		bias:         make([]float32, actions),
	}
	if rng != nil {
		for i := range m.weights {
			m.weights[i] = float32(rng.NormFloat64() * 0.01)
		}
	}
	return m
}

func (m *LinearApproximator) Inputs() int  { return m.inputs }
func (m *LinearApproximator) Actions() int { return m.actions }

func (m *LinearApproximator) Predict(state []float32) ([]float32, error) {
	if len(state) != m.inputs {
		return nil, fmt.Errorf("state has %d values, want %d: %w", len(state), m.inputs, ErrShapeMismatch)
	}
	out := make([]float32, m.actions)
	active := activeInputs(state)
	for a := 0; a < m.actions; a++ {
		out[a] = m.q(a, state, active)
	}
	return out, nil
}

func (m *LinearApproximator) PredictBatch(states [][]float32) ([][]float32, error) {
	out := make([][]float32, len(states))
	for i, s := range states {
		q, err := m.Predict(s)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		out[i] = q
	}
	return out, nil
}

func (m *LinearApproximator) Fit(states [][]float32, actions []int, targets []float32) (float64, error) {
	if len(states) != len(actions) || len(states) != len(targets) {
		return 0, fmt.Errorf("batch of %d states, %d actions, %d targets: %w", len(states), len(actions), len(targets), ErrShapeMismatch)
	}
	if len(states) == 0 {
		return 0, nil
	}
	if err := CheckTargets(targets); err != nil {
		return 0, err
	}

	var loss float64
	for i, s := range states {
		a := actions[i]
		if len(s) != m.inputs {
			return 0, fmt.Errorf("state %d has %d values, want %d: %w", i, len(s), m.inputs, ErrShapeMismatch)
		}
		if a < 0 || a >= m.actions {
			return 0, fmt.Errorf("action %d out of range [0,%d): %w", a, m.actions, ErrShapeMismatch)
		}
		active := activeInputs(s)
		diff := m.q(a, s, active) - targets[i]
		loss += float64(diff) * float64(diff)

		step := m.learningRate * diff
		row := m.weights[a*m.inputs : (a+1)*m.inputs]
		for _, j := range active {
			row[j] -= step * s[j]
		}
		m.bias[a] -= step
	}
	loss /= float64(len(states))
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("loss diverged to %v: %w", loss, ErrNonFiniteTarget)
	}
	return loss, nil
}

func (m *LinearApproximator) CloneInto(dst Approximator) error {
	d, ok := dst.(*LinearApproximator)
	if !ok {
		return fmt.Errorf("clone into %T: %w", dst, ErrIncompatibleModel)
	}
	if d.inputs != m.inputs || d.actions != m.actions {
		return fmt.Errorf("clone %dx%d into %dx%d: %w", m.actions, m.inputs, d.actions, d.inputs, ErrIncompatibleModel)
	}
	copy(d.weights, m.weights)
	copy(d.bias, m.bias)
	d.learningRate = m.learningRate
	return nil
}

// MarshalBinary writes magic, version, inputs, actions, learning rate, weights and
// bias, all little-endian.
func (m *LinearApproximator) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(linearMagic) + 16 + 4*(len(m.weights)+len(m.bias)))
	buf.WriteString(linearMagic)
	header := []any{linearVersion, uint32(m.inputs), uint32(m.actions), m.learningRate}
	for _, v := range header {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, m.weights); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, m.bias); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the model, including its shape, with the encoded one.
func (m *LinearApproximator) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	magic := make([]byte, len(linearMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != linearMagic {
		return fmt.Errorf("bad magic: %w", errBadModelFile)
	}
	var version, inputs, actions uint32
	var lr float32
	for _, v := range []any{&version, &inputs, &actions, &lr} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("header: %w", errBadModelFile)
		}
	}
	if version != linearVersion {
		return fmt.Errorf("version %d: %w", version, errBadModelFile)
	}
	if want := 4 * (int(inputs)*int(actions) + int(actions)); r.Len() != want {
		return fmt.Errorf("payload is %d bytes, want %d: %w", r.Len(), want, errBadModelFile)
	}

	weights := make([]float32, int(inputs)*int(actions))
	bias := make([]float32, actions)
	if err := binary.Read(r, binary.LittleEndian, weights); err != nil {
		return fmt.Errorf("weights: %w", errBadModelFile)
	}
	if err := binary.Read(r, binary.LittleEndian, bias); err != nil {
		return fmt.Errorf("bias: %w", errBadModelFile)
	}
	m.inputs, m.actions, m.learningRate = int(inputs), int(actions), lr
	m.weights, m.bias = weights, bias
	return nil
}

func (m *LinearApproximator) q(a int, state []float32, active []int) float32 {
	row := m.weights[a*m.inputs : (a+1)*m.inputs]
	sum := m.bias[a]
	for _, j := range active {
		sum += row[j] * state[j]
	}
	return sum
}

// activeInputs lists the non-zero entries of a mostly empty board encoding.
func activeInputs(state []float32) []int {
	out := make([]int, 0, 32)
	for i, v := range state {
		if v != 0 {
			out = append(out, i)
		}
	}
	return out
}
