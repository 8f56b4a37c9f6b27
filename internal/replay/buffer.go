// Package replay holds the shared experience buffer that every team in a
// training run writes transitions into and samples learning batches from.
package replay

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// ErrInsufficientData is returned by Sample when the buffer holds fewer
// experiences than requested. Callers treat it as "skip this update".
var ErrInsufficientData = errors.New("insufficient data in replay buffer")

// Experience is one recorded transition from a single team's point of view.
type Experience struct {
	Team      int
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
	// Terminal is always false for draft transitions; episodes end when the
	// round count runs out, not on a terminal transition.
	Terminal bool
	// NextLegal lists the actions legal from NextState: every category in
	// soft-limit drafts, the capped item ids in hard-cap drafts. The tabular
	// update bootstraps over it.
	NextLegal []int
}

// Buffer is a bounded FIFO of experiences backed by a ring. It is safe for
// concurrent use so policy updates may run on worker goroutines.
type Buffer struct {
	mu       sync.Mutex
	items    []Experience
	head     int // index of the oldest entry
	size     int
	capacity int
}

// NewBuffer returns an empty buffer holding at most capacity experiences.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("replay capacity must be > 0, got %d", capacity)
	}
	return &Buffer{
		items:    make([]Experience, capacity),
		capacity: capacity,
	}, nil
}

// Add appends an experience, evicting the oldest entry first when full.
func (b *Buffer) Add(exp Experience) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == b.capacity {
		b.items[b.head] = exp
		b.head = (b.head + 1) % b.capacity
		return
	}
	b.items[(b.head+b.size)%b.capacity] = exp
	b.size++
}

// Sample draws n distinct experiences uniformly without replacement.
func (b *Buffer) Sample(n int, src rand.Source) ([]Experience, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample size must be > 0, got %d", n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size < n {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, b.size, n)
	}
	idxs := make([]int, n)
	sampleuv.WithoutReplacement(idxs, b.size, src)
	batch := make([]Experience, n)
	for i, idx := range idxs {
		batch[i] = b.items[(b.head+idx)%b.capacity]
	}
	return batch, nil
}

// Items returns a copy of the buffer contents, oldest first.
func (b *Buffer) Items() []Experience {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Experience, b.size)
	for i := range out {
		out[i] = b.items[(b.head+i)%b.capacity]
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return b.capacity
}

// Reset drops every stored experience.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.head = 0
	b.size = 0
}
