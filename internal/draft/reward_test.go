package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/snakedraft/internal/randutil"
)

func rewardFixture(t *testing.T) (*Pool, *RewardModel) {
	t.Helper()
	p, err := NewPool([]Item{
		{Name: "qb1", Category: 0, Value: 360},
		{Name: "qb2", Category: 0, Value: 270},
		{Name: "rb1", Category: 1, Value: 280},
		{Name: "rb2", Category: 1, Value: 140},
		{Name: "zero", Category: 2, Value: 0},
	}, 3)
	require.NoError(t, err)
	m, err := NewRewardModel(p, []int{1, 2, 1})
	require.NoError(t, err)
	return p, m
}

func itemNamed(t *testing.T, p *Pool, name string) Item {
	t.Helper()
	for _, it := range p.Inventory() {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("no item %q", name)
	return Item{}
}

func TestRewardNormalisesByCategoryMax(t *testing.T) {
	p, m := rewardFixture(t)
	assert.InDelta(t, 1.0, m.Reward(itemNamed(t, p, "qb1"), []int{1, 0, 0}), 1e-12)
	assert.InDelta(t, 0.75, m.Reward(itemNamed(t, p, "qb2"), []int{1, 0, 0}), 1e-12)
	assert.InDelta(t, 0.5, m.Reward(itemNamed(t, p, "rb2"), []int{0, 1, 0}), 1e-12)
}

func TestRewardZeroMaxCategory(t *testing.T) {
	p, m := rewardFixture(t)
	assert.Equal(t, 0.0, m.Reward(itemNamed(t, p, "zero"), []int{0, 0, 1}))
}

func TestRewardOverdraftPenalty(t *testing.T) {
	p, m := rewardFixture(t)
	rb2 := itemNamed(t, p, "rb2") // base 0.5, limit 2

	// Three RBs with every category filled: overdraft 1.
	assert.InDelta(t, -0.5, m.Reward(rb2, []int{1, 3, 1}), 1e-12)
	// Same but a category is still empty: overdraft 2.
	assert.InDelta(t, -1.0, m.Reward(rb2, []int{0, 3, 1}), 1e-12)
	// Larger overdraft is clamped.
	assert.InDelta(t, -1.0, m.Reward(rb2, []int{0, 6, 0}), 1e-12)

	qb2 := itemNamed(t, p, "qb2") // base 0.75, limit 1
	assert.InDelta(t, -0.75, m.Reward(qb2, []int{2, 1, 1}), 1e-12)
}

func TestRewardAlwaysWithinUnitRange(t *testing.T) {
	p, m := rewardFixture(t)
	inv := p.Inventory()
	rng := randutil.New(21)
	for i := 0; i < 2000; i++ {
		it := inv[rng.IntN(len(inv))]
		counters := []int{rng.IntN(6), rng.IntN(6), rng.IntN(6)}
		if counters[it.Category] == 0 {
			counters[it.Category] = 1
		}
		r := m.Reward(it, counters)
		if r < -1 || r > 1 {
			t.Fatalf("reward %v out of range for %s with %v", r, it.Name, counters)
		}
	}
}

func TestNewRewardModelLimitCount(t *testing.T) {
	p, _ := rewardFixture(t)
	_, err := NewRewardModel(p, []int{1})
	assert.Error(t, err)
}
