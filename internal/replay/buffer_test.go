package replay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/snakedraft/internal/randutil"
)

func marker(i int) Experience {
	return Experience{Action: i, Reward: float64(i)}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	buf, err := NewBuffer(3)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		buf.Add(marker(i))
		assert.LessOrEqual(t, buf.Len(), buf.Cap())
	}

	items := buf.Items()
	require.Len(t, items, 3)
	got := []int{items[0].Action, items[1].Action, items[2].Action}
	assert.Equal(t, []int{3, 4, 5}, got)
}

func TestBufferSampleInsufficientData(t *testing.T) {
	buf, err := NewBuffer(10)
	require.NoError(t, err)
	buf.Add(marker(1))
	buf.Add(marker(2))

	_, err = buf.Sample(3, randutil.New(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestBufferSampleDistinct(t *testing.T) {
	buf, err := NewBuffer(8)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		buf.Add(marker(i))
	}

	rng := randutil.New(99)
	for round := 0; round < 50; round++ {
		batch, err := buf.Sample(5, rng)
		require.NoError(t, err)
		require.Len(t, batch, 5)

		seen := map[int]bool{}
		for _, exp := range batch {
			assert.False(t, seen[exp.Action], "duplicate marker %d", exp.Action)
			seen[exp.Action] = true
			// only the 8 newest markers survive eviction
			assert.GreaterOrEqual(t, exp.Action, 4)
		}
	}
}

func TestBufferSampleWholeBuffer(t *testing.T) {
	buf, err := NewBuffer(4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		buf.Add(marker(i))
	}
	batch, err := buf.Sample(4, randutil.New(3))
	require.NoError(t, err)

	got := map[int]bool{}
	for _, exp := range batch {
		got[exp.Action] = true
	}
	assert.Len(t, got, 4)
}

func TestBufferSampleIsReproducible(t *testing.T) {
	buf, err := NewBuffer(32)
	require.NoError(t, err)
	for i := 0; i < 32; i++ {
		buf.Add(marker(i))
	}
	a, err := buf.Sample(6, randutil.New(5))
	require.NoError(t, err)
	b, err := buf.Sample(6, randutil.New(5))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewBufferRejectsZeroCapacity(t *testing.T) {
	_, err := NewBuffer(0)
	assert.Error(t, err)
}

func TestBufferReset(t *testing.T) {
	buf, err := NewBuffer(2)
	require.NoError(t, err)
	buf.Add(marker(1))
	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Empty(t, buf.Items())
}
