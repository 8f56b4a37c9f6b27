package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/lox/snakedraft/internal/randutil"
)

func TestSoftmaxIsDistribution(t *testing.T) {
	for _, temp := range []float64{0.1, 0.5, 1, 3, 10} {
		probs, err := Softmax([]float64{1.5, -0.2, 0.7, 0.7}, temp)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, floats.Sum(probs), 1e-9, "temperature %v", temp)
		assert.Greater(t, probs[0], probs[2])
		assert.Greater(t, probs[2], probs[1])
		assert.InDelta(t, probs[2], probs[3], 1e-12)
	}
}

func TestSoftmaxLargeValuesDoNotOverflow(t *testing.T) {
	probs, err := Softmax([]float64{1000, 999}, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, floats.Sum(probs), 1e-9)
	assert.Greater(t, probs[0], 0.99)
}

func TestSoftmaxRejectsBadInput(t *testing.T) {
	_, err := Softmax([]float64{1}, 0)
	assert.Error(t, err)
	_, err = Softmax(nil, 1)
	assert.ErrorIs(t, err, ErrNoActions)
}

func TestSampleIndexFollowsWeights(t *testing.T) {
	rng := randutil.New(11)
	counts := make([]int, 3)
	for i := 0; i < 5000; i++ {
		counts[sampleIndex([]float64{0.7, 0.2, 0.1}, rng)]++
	}
	assert.Greater(t, counts[0], counts[1])
	assert.Greater(t, counts[1], counts[2])
}

func TestScheduleDecaysTowardFloor(t *testing.T) {
	s := Schedule{Initial: 1, Decay: 0.5, Floor: 0.2}
	require.NoError(t, s.Validate())

	v := s.Initial
	v = s.Next(v)
	assert.InDelta(t, 0.5, v, 1e-12)
	v = s.Next(v)
	assert.InDelta(t, 0.25, v, 1e-12)
	v = s.Next(v)
	assert.InDelta(t, 0.2, v, 1e-12)
	v = s.Next(v)
	assert.InDelta(t, 0.2, v, 1e-12)
}

func TestScheduleValidate(t *testing.T) {
	assert.Error(t, Schedule{Initial: 1, Decay: 0, Floor: 0}.Validate())
	assert.Error(t, Schedule{Initial: 1, Decay: 1.5, Floor: 0}.Validate())
	assert.Error(t, Schedule{Initial: 0.1, Decay: 0.9, Floor: 0.5}.Validate())
	assert.NoError(t, Schedule{Initial: 3, Decay: 0.9995, Floor: 1}.Validate())
}

func TestParseKindAndSelection(t *testing.T) {
	k, err := ParseKind("tabular")
	require.NoError(t, err)
	assert.Equal(t, KindTabular, k)
	_, err = ParseKind("bogus")
	assert.Error(t, err)

	s, err := ParseSelection("epsilon-greedy")
	require.NoError(t, err)
	assert.Equal(t, SelectionEpsilonGreedy, s)
	assert.Equal(t, "softmax", SelectionSoftmax.String())
}
