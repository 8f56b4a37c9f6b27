package policy

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
)

// StateKey is the canonical fixed-width encoding of a state vector: every
// counter becomes a big-endian uint16. Two states map to the same key exactly
// when their counters are equal.
type StateKey string

// EncodeState converts a counter vector into its table key.
func EncodeState(state []float64) StateKey {
	buf := make([]byte, 0, 2*len(state))
	for _, v := range state {
		buf = binary.BigEndian.AppendUint16(buf, uint16(math.Round(v)))
	}
	return StateKey(buf)
}

// Counters decodes the key back into integer counters.
func (k StateKey) Counters() []int {
	out := make([]int, len(k)/2)
	for i := range out {
		out[i] = int(binary.BigEndian.Uint16([]byte(k[2*i : 2*i+2])))
	}
	return out
}

// Key addresses one (state, action) value.
type Key struct {
	State  StateKey
	Action int
}

func (k Key) String() string {
	return fmt.Sprintf("%v/%d", k.State.Counters(), k.Action)
}

const valueTableShardCount = 64
const valueTableShardMask = valueTableShardCount - 1

type valueShard struct {
	mu      sync.RWMutex
	entries map[Key]float64
}

// ValueTable is a sparse (state, action) -> value map split across shards.
// Missing keys read as zero.
type ValueTable struct {
	shards [valueTableShardCount]valueShard
}

// NewValueTable returns an empty table ready for use.
func NewValueTable() *ValueTable {
	table := &ValueTable{}
	for i := 0; i < valueTableShardCount; i++ {
		table.shards[i].entries = make(map[Key]float64)
	}
	return table
}

// Value returns the stored value for key, or zero when unseen.
func (t *ValueTable) Value(key Key) float64 {
	shard := t.shardFor(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.entries[key]
}

// Set stores v under key.
func (t *ValueTable) Set(key Key, v float64) {
	shard := t.shardFor(key)
	shard.mu.Lock()
	shard.entries[key] = v
	shard.mu.Unlock()
}

// Size returns the number of stored entries.
func (t *ValueTable) Size() int {
	total := 0
	for i := 0; i < valueTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// TableEntry is the serialisable form of one table value.
type TableEntry struct {
	State  []int   `json:"state"`
	Action int     `json:"action"`
	Value  float64 `json:"value"`
}

// Entries exposes a snapshot of the table, ordered by key for stable output.
func (t *ValueTable) Entries() []TableEntry {
	type kv struct {
		key Key
		v   float64
	}
	var all []kv
	for i := 0; i < valueTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		for k, v := range shard.entries {
			all = append(all, kv{k, v})
		}
		shard.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].key.State != all[j].key.State {
			return all[i].key.State < all[j].key.State
		}
		return all[i].key.Action < all[j].key.Action
	})
	out := make([]TableEntry, len(all))
	for i, e := range all {
		out[i] = TableEntry{State: e.key.State.Counters(), Action: e.key.Action, Value: e.v}
	}
	return out
}

func restoreValueTable(entries []TableEntry) *ValueTable {
	table := NewValueTable()
	for _, e := range entries {
		state := make([]float64, len(e.State))
		for i, c := range e.State {
			state[i] = float64(c)
		}
		table.Set(Key{State: EncodeState(state), Action: e.Action}, e.Value)
	}
	return table
}

func (t *ValueTable) shardFor(key Key) *valueShard {
	h := hashKey(string(key.State)) ^ uint32(key.Action)*16777619
	return &t.shards[h&valueTableShardMask]
}

func hashKey(key string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	var hash uint32 = offset32
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
