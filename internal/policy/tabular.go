package policy

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/snakedraft/internal/replay"
)

// TabularConfig holds the fixed learning parameters of a tabular policy.
type TabularConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Discount     float64 `json:"discount"`
}

// DefaultTabularConfig matches the tuned values of the original drafter.
func DefaultTabularConfig() TabularConfig {
	return TabularConfig{LearningRate: 0.2, Discount: 0.9}
}

func (c TabularConfig) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return errors.New("tabular learning rate must be in (0, 1]")
	}
	if c.Discount < 0 || c.Discount > 1 {
		return errors.New("discount must be in [0, 1]")
	}
	return nil
}

// Tabular is an epsilon-greedy policy over a sparse (state, action) table.
// Actions are addressed at item granularity: the legal set is the inventory
// ids the engine says the team may still draft.
type Tabular struct {
	cfg     TabularConfig
	table   *ValueTable
	explore explorer
	rng     *rand.Rand
}

var (
	_ Policy      = (*Tabular)(nil)
	_ Snapshotter = (*Tabular)(nil)
)

// NewTabular returns a tabular policy drawing exploration from rng.
func NewTabular(cfg TabularConfig, rng *rand.Rand) (*Tabular, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("tabular policy requires a random source")
	}
	p := &Tabular{cfg: cfg, table: NewValueTable(), rng: rng}
	p.explore.reset(Schedule{Initial: 1.0, Decay: 0.999, Floor: 0.05})
	return p, nil
}

func (p *Tabular) Kind() Kind { return KindTabular }

// ChooseAction picks a uniformly random legal action with probability
// epsilon, otherwise the legal action with the highest table value. Ties go to
// the first legal action encountered.
func (p *Tabular) ChooseAction(obs Observation, explore bool) (int, error) {
	if len(obs.Legal) == 0 {
		return 0, ErrNoActions
	}
	epsilon := 0.0
	if explore {
		epsilon = p.explore.value
	}
	if epsilon > 0 && p.rng.Float64() < epsilon {
		return obs.Legal[p.rng.IntN(len(obs.Legal))], nil
	}

	state := EncodeState(obs.State)
	best := obs.Legal[0]
	bestValue := p.table.Value(Key{State: state, Action: best})
	for _, a := range obs.Legal[1:] {
		if v := p.table.Value(Key{State: state, Action: a}); v > bestValue {
			best, bestValue = a, v
		}
	}
	return best, nil
}

// Update applies the single-step bootstrapped rule to every transition in
// batch, in order.
func (p *Tabular) Update(batch []replay.Experience) error {
	for i, exp := range batch {
		if len(exp.State) == 0 || len(exp.NextState) != len(exp.State) {
			return fmt.Errorf("experience %d: malformed state", i)
		}
		p.learn(exp)
	}
	return nil
}

func (p *Tabular) learn(exp replay.Experience) {
	next := EncodeState(exp.NextState)
	bestNext := 0.0
	for i, a := range exp.NextLegal {
		v := p.table.Value(Key{State: next, Action: a})
		if i == 0 || v > bestNext {
			bestNext = v
		}
	}
	target := exp.Reward + p.cfg.Discount*bestNext

	key := Key{State: EncodeState(exp.State), Action: exp.Action}
	current := p.table.Value(key)
	p.table.Set(key, current+p.cfg.LearningRate*(target-current))
}

// Value exposes a single table entry.
func (p *Tabular) Value(state []float64, action int) float64 {
	return p.table.Value(Key{State: EncodeState(state), Action: action})
}

// TableSize reports how many (state, action) pairs have been learned.
func (p *Tabular) TableSize() int {
	return p.table.Size()
}

// Configure resets epsilon to the phase schedule. The tabular policy has no
// gradient step, so the clip bound and learning rate are ignored.
func (p *Tabular) Configure(params PhaseParams) {
	p.explore.reset(params.Exploration)
}

func (p *Tabular) Decay() { p.explore.decay() }

func (p *Tabular) Exploration() float64 { return p.explore.value }

// Snapshot captures the learned table.
func (p *Tabular) Snapshot() (Snapshot, error) {
	return Snapshot{
		Kind:        KindTabular.String(),
		Exploration: p.explore.value,
		Schedule:    p.explore.schedule,
		Table:       p.table.Entries(),
	}, nil
}

// Restore replaces the table and exploration state with snap.
func (p *Tabular) Restore(snap Snapshot) error {
	if snap.Kind != KindTabular.String() {
		return fmt.Errorf("cannot restore %s snapshot into tabular policy", snap.Kind)
	}
	p.table = restoreValueTable(snap.Table)
	p.explore.schedule = snap.Schedule
	p.explore.value = snap.Exploration
	return nil
}
