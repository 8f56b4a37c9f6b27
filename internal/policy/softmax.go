package policy

import (
	"fmt"
	"math"
	rand "math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Softmax scales values by 1/temperature and normalises them into a
// probability distribution. The maximum is subtracted first so large values
// do not overflow.
func Softmax(values []float64, temperature float64) ([]float64, error) {
	if temperature <= 0 {
		return nil, fmt.Errorf("softmax temperature must be > 0, got %v", temperature)
	}
	if len(values) == 0 {
		return nil, ErrNoActions
	}
	probs := make([]float64, len(values))
	copy(probs, values)
	floats.Scale(1/temperature, probs)
	shift := floats.Max(probs)
	for i, v := range probs {
		probs[i] = math.Exp(v - shift)
	}
	floats.Scale(1/floats.Sum(probs), probs)
	return probs, nil
}

// sampleIndex draws an index proportionally to weights.
func sampleIndex(weights []float64, rng *rand.Rand) int {
	return int(distuv.NewCategorical(weights, rng).Rand())
}

// argmax returns the first index holding the largest value.
func argmax(values []float64) int {
	return floats.MaxIdx(values)
}
