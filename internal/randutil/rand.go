package randutil

import rand "math/rand/v2"

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// Stream names an independent random sequence derived from a run seed. Keeping
// exploration, replay sampling and weight initialisation on separate streams
// means an exploit draft replays identically no matter how much training
// consumed from the other sequences.
type Stream uint64

const (
	StreamExploration Stream = iota + 1
	StreamReplay
	StreamWeights
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Derive returns the seed for a named stream and index (usually a team id).
func Derive(seed int64, stream Stream, index int) int64 {
	x := mix(uint64(seed) ^ mix(uint64(stream)*goldenRatio64))
	return int64(mix(x + uint64(index)*goldenRatio64))
}

// NewStream is shorthand for New(Derive(seed, stream, index)).
func NewStream(seed int64, stream Stream, index int) *rand.Rand {
	return New(Derive(seed, stream, index))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
