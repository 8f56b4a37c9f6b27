// Package statistics summarises per-episode training results.
package statistics

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EpisodeResult is one team's outcome for one training episode.
type EpisodeResult struct {
	Reward      float64 // accumulated shaped reward
	Points      float64 // accumulated item value
	Penalties   int     // turns lost to empty categories
	Exploration float64 // epsilon or temperature after the episode
}

// Statistics tracks a running summary of episode rewards for one team.
type Statistics struct {
	Episodes  int
	SumReward float64
	SumPoints float64
	Penalties int
	Values    []float64 // every reward, in episode order

	BestReward  float64
	WorstReward float64
}

// Mean returns the mean reward per episode
func (s *Statistics) Mean() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return s.SumReward / float64(s.Episodes)
}

// MeanPoints returns the mean drafted value per episode
func (s *Statistics) MeanPoints() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return s.SumPoints / float64(s.Episodes)
}

// Variance returns the sample variance of all rewards
func (s *Statistics) Variance() float64 {
	if s.Episodes < 2 {
		return 0
	}
	return stat.Variance(s.Values, nil)
}

// StdDev returns the sample standard deviation of all rewards
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Episodes))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add incorporates a new episode result.
func (s *Statistics) Add(result EpisodeResult) {
	if s.Episodes == 0 || result.Reward > s.BestReward {
		s.BestReward = result.Reward
	}
	if s.Episodes == 0 || result.Reward < s.WorstReward {
		s.WorstReward = result.Reward
	}
	s.Episodes++
	s.SumReward += result.Reward
	s.SumPoints += result.Points
	s.Penalties += result.Penalties
	s.Values = append(s.Values, result.Reward)
}

// Median returns the median reward
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the linearly interpolated reward at p (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	slices.Sort(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// MovingAverage smooths the reward history with a trailing window. Entries
// before the window fills average what is available.
func (s *Statistics) MovingAverage(window int) []float64 {
	if window <= 0 || len(s.Values) == 0 {
		return nil
	}
	out := make([]float64, len(s.Values))
	for i := range s.Values {
		start := max(0, i-window+1)
		out[i] = floats.Sum(s.Values[start:i+1]) / float64(i+1-start)
	}
	return out
}

// Validate checks the running totals against the stored values.
func (s *Statistics) Validate() error {
	if len(s.Values) != s.Episodes {
		return fmt.Errorf("values array length (%d) does not match episode count (%d)",
			len(s.Values), s.Episodes)
	}
	if math.Abs(floats.Sum(s.Values)-s.SumReward) > 1e-6 {
		return fmt.Errorf("reward sum mismatch: running=%.6f values=%.6f", s.SumReward, floats.Sum(s.Values))
	}
	if s.Penalties < 0 {
		return fmt.Errorf("negative penalty count: %d", s.Penalties)
	}
	return nil
}
