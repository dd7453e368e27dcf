package learning

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/testutil"
)

func TestLinearApproximator_PredictZeroInit(t *testing.T) {
	m := NewLinearApproximator(4, 3, 0.1, nil)

	q, err := m.Predict([]float32{1, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, q)

	_, err = m.Predict([]float32{1, 0})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = m.PredictBatch([][]float32{{0, 0, 0, 0}, {1}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLinearApproximator_FitConverges(t *testing.T) {
	m := NewLinearApproximator(4, 2, 0.1, nil)
	states := [][]float32{{1, 0, 0, 1}, {0, 1, 1, 0}}
	actions := []int{0, 1}
	targets := []float32{2, -1}

	first, err := m.Fit(states, actions, targets)
	require.NoError(t, err)
	var last float64
	for i := 0; i < 200; i++ {
		last, err = m.Fit(states, actions, targets)
		require.NoError(t, err)
	}
	assert.Less(t, last, first)
	assert.Less(t, last, 1e-3)

	q, err := m.Predict(states[0])
	require.NoError(t, err)
	assert.InDelta(t, 2, q[0], 0.05)
}

func TestLinearApproximator_FitRejectsBadBatches(t *testing.T) {
	m := NewLinearApproximator(2, 2, 0.1, nil)

	_, err := m.Fit([][]float32{{1, 0}}, []int{0, 1}, []float32{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = m.Fit([][]float32{{1, 0}}, []int{5}, []float32{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = m.Fit([][]float32{{1, 0}}, []int{0}, []float32{float32(math.NaN())})
	assert.ErrorIs(t, err, ErrNonFiniteTarget)

	loss, err := m.Fit(nil, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, loss)
}

func TestFitVectors(t *testing.T) {
	m := NewLinearApproximator(4, 3, 0.1, nil)
	states := [][]float32{{1, 0, 0, 1}}
	targets := [][]float32{{0, 2, 0}}

	first, err := FitVectors(m, states, targets)
	require.NoError(t, err)
	assert.Greater(t, first, 0.0)
	for i := 0; i < 200; i++ {
		_, err = FitVectors(m, states, targets)
		require.NoError(t, err)
	}

	q, err := m.Predict(states[0])
	require.NoError(t, err)
	assert.InDelta(t, 2, q[1], 0.05)
	assert.Equal(t, float32(0), q[0], "matching entries are left alone")
	assert.Equal(t, float32(0), q[2])

	loss, err := FitVectors(m, states, [][]float32{q})
	require.NoError(t, err)
	assert.Zero(t, loss)

	_, err = FitVectors(m, states, [][]float32{{0, 1}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = FitVectors(m, states, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = FitVectors(m, states, [][]float32{{0, float32(math.NaN()), 0}})
	assert.ErrorIs(t, err, ErrNonFiniteTarget)
}

func TestLinearApproximator_CloneInto(t *testing.T) {
	src := NewLinearApproximator(3, 2, 0.1, testutil.NewTestRNG(1))
	dst := NewLinearApproximator(3, 2, 0.1, nil)
	require.NoError(t, src.CloneInto(dst))

	s := []float32{1, 1, 0}
	a, _ := src.Predict(s)
	b, _ := dst.Predict(s)
	assert.Equal(t, a, b)

	// Later updates to the source do not leak into the copy.
	_, err := src.Fit([][]float32{s}, []int{0}, []float32{5})
	require.NoError(t, err)
	c, _ := dst.Predict(s)
	assert.Equal(t, b, c)

	assert.ErrorIs(t, src.CloneInto(NewLinearApproximator(4, 2, 0.1, nil)), ErrIncompatibleModel)
	assert.ErrorIs(t, src.CloneInto(&stubModel{}), ErrIncompatibleModel)
}

func TestLinearApproximator_BinaryRoundTrip(t *testing.T) {
	m := NewLinearApproximator(5, 3, 0.05, testutil.NewTestRNG(7))
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	var loaded LinearApproximator
	require.NoError(t, loaded.UnmarshalBinary(data))
	assert.Equal(t, 5, loaded.Inputs())
	assert.Equal(t, 3, loaded.Actions())

	s := []float32{1, 0, 1, 1, 0}
	want, _ := m.Predict(s)
	got, err := loaded.Predict(s)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLinearApproximator_UnmarshalRejectsCorruptData(t *testing.T) {
	m := NewLinearApproximator(2, 2, 0.1, nil)
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	var target LinearApproximator
	assert.Error(t, target.UnmarshalBinary([]byte("nope")))
	assert.Error(t, target.UnmarshalBinary(data[:len(data)-1]))

	bad := append([]byte{}, data...)
	bad[0] = 'X'
	assert.Error(t, target.UnmarshalBinary(bad))
}

func TestSaveAndLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "q.bin")
	m := NewLinearApproximator(3, 4, 0.1, testutil.NewTestRNG(3))
	require.NoError(t, SaveModel(m, path))

	var loaded LinearApproximator
	require.NoError(t, LoadModel(&loaded, path))
	s := []float32{0, 1, 1}
	want, _ := m.Predict(s)
	got, _ := loaded.Predict(s)
	assert.Equal(t, want, got)

	assert.Error(t, LoadModel(&loaded, filepath.Join(t.TempDir(), "missing.bin")))
}

func TestCheckTargets(t *testing.T) {
	assert.NoError(t, CheckTargets([]float32{0, -1, 1e6}))
	assert.ErrorIs(t, CheckTargets([]float32{1, float32(math.NaN())}), ErrNonFiniteTarget)
	assert.ErrorIs(t, CheckTargets([]float32{float32(math.Inf(-1))}), ErrNonFiniteTarget)
}
