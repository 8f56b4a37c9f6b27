// Package policy implements the decision strategies a drafting team can be
// bound to: a tabular value table and a function-approximated value estimator
// with a periodically synchronised stabilising copy.
//
// The draft engine and the trainer only depend on the Policy interface. The
// optional Synchronizer and Snapshotter capabilities are discovered with type
// assertions.
package policy

import (
	"errors"
	"fmt"

	"github.com/lox/snakedraft/internal/replay"
)

// ErrNoActions is returned when a policy is asked to choose from an empty
// legal action set.
var ErrNoActions = errors.New("no legal actions to choose from")

// Kind identifies a policy implementation.
type Kind uint8

const (
	KindTabular Kind = iota
	KindApproximated
)

func (k Kind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindApproximated:
		return "approximated"
	default:
		return "unknown"
	}
}

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "tabular":
		return KindTabular, nil
	case "approximated":
		return KindApproximated, nil
	default:
		return 0, fmt.Errorf("unknown policy kind %q", s)
	}
}

// Selection is the exploration rule used by the approximated policy.
type Selection uint8

const (
	SelectionSoftmax Selection = iota
	SelectionEpsilonGreedy
)

func (s Selection) String() string {
	switch s {
	case SelectionSoftmax:
		return "softmax"
	case SelectionEpsilonGreedy:
		return "epsilon-greedy"
	default:
		return "unknown"
	}
}

// ParseSelection converts a configuration string to a Selection.
func ParseSelection(s string) (Selection, error) {
	switch s {
	case "softmax":
		return SelectionSoftmax, nil
	case "epsilon-greedy", "epsilon_greedy":
		return SelectionEpsilonGreedy, nil
	default:
		return 0, fmt.Errorf("unknown selection rule %q", s)
	}
}

// Observation is what a team sees when it is on the clock.
type Observation struct {
	// State is the fixed-length counter encoding for the acting team.
	State []float64
	// Legal lists the actions the engine will accept. Category-mode drafts
	// pass every category index; item-mode drafts pass the inventory ids of
	// items under the team's category caps.
	Legal []int
}

// PhaseParams are the hyperparameters a training phase resets on every policy.
type PhaseParams struct {
	Exploration  Schedule
	MaxGradNorm  float64
	LearningRate float64
}

// Policy is a team's decision strategy.
type Policy interface {
	Kind() Kind
	// ChooseAction picks an action for obs. explore=false forces full
	// exploitation.
	ChooseAction(obs Observation, explore bool) (int, error)
	// Update learns from a batch of transitions.
	Update(batch []replay.Experience) error
	// Configure resets exploration and optimiser settings at a phase boundary.
	// Learned parameters are kept.
	Configure(params PhaseParams)
	// Decay advances the exploration schedule by one episode.
	Decay()
	// Exploration reports the current epsilon or temperature.
	Exploration() float64
}

// Synchronizer is implemented by policies that bootstrap from a stabilising
// copy of their estimator.
type Synchronizer interface {
	SyncTarget()
}

// Snapshotter is implemented by policies whose learned parameters can be
// persisted and restored.
type Snapshotter interface {
	Snapshot() (Snapshot, error)
	Restore(Snapshot) error
}
