package draft

import (
	"fmt"
	"math"
)

// InvalidActionPenalty is the reward for picking from an empty category.
const InvalidActionPenalty = -1.0

// RewardModel scores a pick relative to the best item of its category and
// punishes drafting past a category limit.
type RewardModel struct {
	maxValue []float64
	limits   []int
}

// NewRewardModel normalises against the pool's per-category maxima.
func NewRewardModel(pool *Pool, limits []int) (*RewardModel, error) {
	if len(limits) != pool.Categories() {
		return nil, fmt.Errorf("got %d limits for %d categories", len(limits), pool.Categories())
	}
	m := &RewardModel{
		maxValue: make([]float64, pool.Categories()),
		limits:   append([]int(nil), limits...),
	}
	for c := range m.maxValue {
		m.maxValue[c] = pool.MaxValue(c)
	}
	return m, nil
}

// Reward scores item for a team whose counters already include it. The
// result is always in [-1, 1].
func (m *RewardModel) Reward(item Item, counters []int) float64 {
	c := item.Category
	base := 0.0
	if m.maxValue[c] > 0 {
		base = item.Value / m.maxValue[c]
	}
	if counters[c] <= m.limits[c] {
		return base
	}

	overdraft := counters[c] - m.limits[c]
	for _, n := range counters {
		if n == 0 {
			overdraft++
			break
		}
	}
	return math.Max(-float64(overdraft)*base, -1)
}

// Limit returns the configured limit for category.
func (m *RewardModel) Limit(category int) int { return m.limits[category] }
