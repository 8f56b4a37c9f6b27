package policy

import (
	"errors"
	"fmt"
	"math"
	rand "math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/lox/snakedraft/internal/replay"
)

// ApproxConfig holds the fixed structure of an approximated policy.
type ApproxConfig struct {
	StateSize    int       `json:"state_size"`
	ActionSize   int       `json:"action_size"`
	HiddenLayers []int     `json:"hidden_layers"`
	Discount     float64   `json:"discount"`
	Selection    Selection `json:"selection"`
	WeightDecay  float64   `json:"weight_decay"`
	// The learning rate is multiplied by LRStepGamma every LRStepEvery
	// episodes. Zero disables the step schedule.
	LRStepEvery int     `json:"lr_step_every"`
	LRStepGamma float64 `json:"lr_step_gamma"`
}

// DefaultApproxConfig sizes three hidden layers at two thirds of the state
// width plus the action count.
func DefaultApproxConfig(stateSize, actionSize int) ApproxConfig {
	hidden := int(math.Ceil(float64(stateSize)*2/3)) + actionSize
	return ApproxConfig{
		StateSize:    stateSize,
		ActionSize:   actionSize,
		HiddenLayers: []int{hidden, hidden, hidden},
		Discount:     0.8,
		Selection:    SelectionSoftmax,
		WeightDecay:  0.01,
		LRStepEvery:  2000,
		LRStepGamma:  0.25,
	}
}

func (c ApproxConfig) Validate() error {
	if c.StateSize <= 0 {
		return errors.New("state size must be > 0")
	}
	if c.ActionSize <= 0 {
		return errors.New("action size must be > 0")
	}
	for i, h := range c.HiddenLayers {
		if h <= 0 {
			return fmt.Errorf("hidden layer %d must be > 0", i)
		}
	}
	if c.Discount < 0 || c.Discount > 1 {
		return errors.New("discount must be in [0, 1]")
	}
	if c.Selection > SelectionEpsilonGreedy {
		return errors.New("invalid selection rule")
	}
	if c.WeightDecay < 0 {
		return errors.New("weight decay cannot be negative")
	}
	if c.LRStepEvery < 0 {
		return errors.New("learning rate step interval cannot be negative")
	}
	if c.LRStepEvery > 0 && (c.LRStepGamma <= 0 || c.LRStepGamma > 1) {
		return errors.New("learning rate step gamma must be in (0, 1]")
	}
	return nil
}

// Approximated chooses categories from a live value estimator and learns
// against targets from a stabilising copy that only changes on SyncTarget.
type Approximated struct {
	cfg      ApproxConfig
	live     Estimator
	target   Estimator
	explore  explorer
	params   PhaseParams
	episodes int
	lastLoss float64
	rng      *rand.Rand
}

var (
	_ Policy       = (*Approximated)(nil)
	_ Synchronizer = (*Approximated)(nil)
	_ Snapshotter  = (*Approximated)(nil)
)

// NewApproximated builds live and stabilising MLPs. The stabilising copy
// starts as an exact copy of the live network.
func NewApproximated(cfg ApproxConfig, rng, weights *rand.Rand) (*Approximated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	live, err := NewMLP(cfg.StateSize, cfg.HiddenLayers, cfg.ActionSize, cfg.WeightDecay, weights)
	if err != nil {
		return nil, err
	}
	target, err := NewMLP(cfg.StateSize, cfg.HiddenLayers, cfg.ActionSize, cfg.WeightDecay, weights)
	if err != nil {
		return nil, err
	}
	p, err := NewApproximatedWith(cfg, live, target, rng)
	if err != nil {
		return nil, err
	}
	p.SyncTarget()
	return p, nil
}

// NewApproximatedWith wires caller-supplied estimators.
func NewApproximatedWith(cfg ApproxConfig, live, target Estimator, rng *rand.Rand) (*Approximated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if live == nil || target == nil {
		return nil, errors.New("approximated policy requires live and stabilising estimators")
	}
	if rng == nil {
		return nil, errors.New("approximated policy requires a random source")
	}
	p := &Approximated{cfg: cfg, live: live, target: target, rng: rng}
	p.Configure(PhaseParams{
		Exploration:  Schedule{Initial: 1.0, Decay: 0.999, Floor: 0.1},
		MaxGradNorm:  1.0,
		LearningRate: 5e-3,
	})
	return p, nil
}

func (p *Approximated) Kind() Kind { return KindApproximated }

// ChooseAction returns a category index. Legal actions are not consulted:
// drafting from an empty category is punished by the engine, not forbidden.
func (p *Approximated) ChooseAction(obs Observation, explore bool) (int, error) {
	if len(obs.State) != p.cfg.StateSize {
		return 0, fmt.Errorf("state length %d, want %d", len(obs.State), p.cfg.StateSize)
	}
	values := p.live.Predict(obs.State)
	if len(values) != p.cfg.ActionSize {
		return 0, fmt.Errorf("estimator returned %d values, want %d", len(values), p.cfg.ActionSize)
	}
	if !explore {
		return argmax(values), nil
	}

	switch p.cfg.Selection {
	case SelectionSoftmax:
		probs, err := Softmax(values, p.explore.value)
		if err != nil {
			return 0, err
		}
		return sampleIndex(probs, p.rng), nil
	case SelectionEpsilonGreedy:
		if p.rng.Float64() < p.explore.value {
			return p.rng.IntN(p.cfg.ActionSize), nil
		}
		return argmax(values), nil
	default:
		return 0, fmt.Errorf("unsupported selection %v", p.cfg.Selection)
	}
}

// Update computes bootstrapped targets from the stabilising estimator and
// takes one gradient step on the live estimator.
func (p *Approximated) Update(batch []replay.Experience) error {
	if len(batch) == 0 {
		return nil
	}
	targets := make([]Target, len(batch))
	for i, exp := range batch {
		next := p.target.Predict(exp.NextState)
		if len(next) == 0 {
			return fmt.Errorf("experience %d: empty stabilising estimate", i)
		}
		continuation := 1.0
		if exp.Terminal {
			continuation = 0
		}
		targets[i] = Target{
			State:  exp.State,
			Action: exp.Action,
			Value:  exp.Reward + continuation*p.cfg.Discount*floats.Max(next),
		}
	}
	loss, err := p.live.Train(targets, TrainStep{
		LearningRate: p.LearningRate(),
		MaxGradNorm:  p.params.MaxGradNorm,
	})
	if err != nil {
		return fmt.Errorf("train live estimator: %w", err)
	}
	p.lastLoss = loss
	return nil
}

// SyncTarget overwrites the stabilising estimator with the live parameters.
func (p *Approximated) SyncTarget() {
	// Both estimators are built from the same config, so shapes always match.
	if err := p.target.SetParams(p.live.Params()); err != nil {
		panic(fmt.Sprintf("sync stabilising estimator: %v", err))
	}
}

func (p *Approximated) Configure(params PhaseParams) {
	p.params = params
	p.explore.reset(params.Exploration)
}

// Decay advances the exploration schedule and the learning-rate step counter.
func (p *Approximated) Decay() {
	p.explore.decay()
	p.episodes++
}

func (p *Approximated) Exploration() float64 { return p.explore.value }

// LearningRate is the phase learning rate after the step schedule.
func (p *Approximated) LearningRate() float64 {
	lr := p.params.LearningRate
	if p.cfg.LRStepEvery > 0 {
		lr *= math.Pow(p.cfg.LRStepGamma, float64(p.episodes/p.cfg.LRStepEvery))
	}
	return lr
}

// LastLoss is the mean Huber loss of the most recent update.
func (p *Approximated) LastLoss() float64 { return p.lastLoss }

// Values exposes the live estimator output for state.
func (p *Approximated) Values(state []float64) []float64 {
	return p.live.Predict(state)
}

// TargetValues exposes the stabilising estimator output for state.
func (p *Approximated) TargetValues(state []float64) []float64 {
	return p.target.Predict(state)
}

// Snapshot captures both estimators as opaque parameter blobs.
func (p *Approximated) Snapshot() (Snapshot, error) {
	live, err := encodeParams(p.live.Params())
	if err != nil {
		return Snapshot{}, err
	}
	target, err := encodeParams(p.target.Params())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Kind:        KindApproximated.String(),
		Exploration: p.explore.value,
		Schedule:    p.explore.schedule,
		Live:        live,
		Target:      target,
		Episodes:    p.episodes,
	}, nil
}

// Restore loads estimator parameters and exploration state from snap.
func (p *Approximated) Restore(snap Snapshot) error {
	if snap.Kind != KindApproximated.String() {
		return fmt.Errorf("cannot restore %s snapshot into approximated policy", snap.Kind)
	}
	live, err := decodeParams(snap.Live)
	if err != nil {
		return err
	}
	target, err := decodeParams(snap.Target)
	if err != nil {
		return err
	}
	if err := p.live.SetParams(live); err != nil {
		return fmt.Errorf("restore live estimator: %w", err)
	}
	if err := p.target.SetParams(target); err != nil {
		return fmt.Errorf("restore stabilising estimator: %w", err)
	}
	p.explore.schedule = snap.Schedule
	p.explore.value = snap.Exploration
	p.episodes = snap.Episodes
	return nil
}
