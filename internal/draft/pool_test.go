package draft

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/snakedraft/internal/randutil"
)

func samplePool(t *testing.T) *Pool {
	t.Helper()
	p, err := NewPool([]Item{
		{Name: "b-low", Category: 1, Value: 50},
		{Name: "a-top", Category: 0, Value: 300},
		{Name: "b-top", Category: 1, Value: 200},
		{Name: "a-mid", Category: 0, Value: 120},
		{Name: "a-tie", Category: 0, Value: 120},
	}, 2)
	require.NoError(t, err)
	return p
}

func TestNewPoolSortsAndAssignsIDs(t *testing.T) {
	p := samplePool(t)
	inv := p.Inventory()
	require.Len(t, inv, 5)
	names := make([]string, len(inv))
	for i, it := range inv {
		assert.Equal(t, i, it.ID)
		names[i] = it.Name
	}
	assert.Equal(t, []string{"a-top", "b-top", "a-mid", "a-tie", "b-low"}, names)
	assert.Equal(t, 300.0, p.MaxValue(0))
	assert.Equal(t, 200.0, p.MaxValue(1))
}

func TestPoolFilterKeepsValueOrder(t *testing.T) {
	p := samplePool(t)
	cat0 := p.Filter(0)
	require.Len(t, cat0, 3)
	assert.Equal(t, "a-top", cat0[0].Name)
	assert.Equal(t, "a-mid", cat0[1].Name)
	assert.Equal(t, "a-tie", cat0[2].Name)
	assert.Nil(t, p.Filter(7))
}

func TestPoolRemoveAndReset(t *testing.T) {
	p := samplePool(t)
	best, ok := p.Best(0)
	require.True(t, ok)
	require.NoError(t, p.Remove(best.ID))
	assert.Equal(t, 4, p.Len())
	assert.False(t, p.Contains(best.ID))

	err := p.Remove(best.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 4, p.Len())

	next, ok := p.Best(0)
	require.True(t, ok)
	assert.Equal(t, "a-mid", next.Name)

	for _, it := range p.Filter(1) {
		require.NoError(t, p.Remove(it.ID))
	}
	assert.True(t, p.IsEmpty(1))
	_, ok = p.Best(1)
	assert.False(t, ok)

	p.Reset()
	assert.Equal(t, 5, p.Len())
	assert.False(t, p.IsEmpty(1))
	assert.True(t, p.Contains(best.ID))
}

func TestPoolRejectsBadItems(t *testing.T) {
	_, err := NewPool([]Item{{Name: "x", Category: 3, Value: 1}}, 2)
	assert.Error(t, err)
	_, err = NewPool([]Item{{Name: "x", Category: 0, Value: -1}}, 2)
	assert.Error(t, err)
	_, err = NewPool([]Item{{Name: "x", Category: 0, Value: math.NaN()}}, 2)
	assert.Error(t, err)
	_, err = NewPool(nil, 0)
	assert.Error(t, err)
}

func TestPoolNeverReturnsRemovedItem(t *testing.T) {
	p := samplePool(t)
	rng := randutil.New(5)
	removed := map[int]bool{}
	for p.Len() > 0 {
		cat := rng.IntN(2)
		it, ok := p.Best(cat)
		if !ok {
			continue
		}
		if removed[it.ID] {
			t.Fatalf("item %d returned after removal", it.ID)
		}
		before := p.Len()
		require.NoError(t, p.Remove(it.ID))
		assert.Equal(t, before-1, p.Len())
		removed[it.ID] = true
	}
	assert.Len(t, removed, 5)
	assert.Empty(t, p.Available())
}

func TestCategoriesValidate(t *testing.T) {
	assert.NoError(t, Categories{"QB", "RB"}.Validate())
	assert.Error(t, Categories{}.Validate())
	assert.Error(t, Categories{"QB", "QB"}.Validate())
	assert.Error(t, Categories{""}.Validate())

	idx, ok := Categories{"QB", "RB", "WR"}.Index("WR")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestErrorSeverity(t *testing.T) {
	rec := &Error{Severity: Recoverable, Err: ErrInvalidAction}
	fatal := &Error{Severity: Fatal, Err: ErrNoLegalActions}
	assert.False(t, IsFatal(rec))
	assert.True(t, IsFatal(fatal))
	assert.True(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
	assert.ErrorIs(t, fatal, ErrNoLegalActions)
	assert.Contains(t, fatal.Error(), "fatal")
}
