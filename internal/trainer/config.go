package trainer

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/snakedraft/internal/policy"
)

// Phase is one stretch of training with its own exploration schedule and
// optimiser settings. Learned parameters carry across phases; the schedule
// restarts from Exploration.Initial.
type Phase struct {
	Name         string          `json:"name"`
	Episodes     int             `json:"episodes"`
	Exploration  policy.Schedule `json:"exploration"`
	MaxGradNorm  float64         `json:"max_grad_norm"`
	LearningRate float64         `json:"learning_rate"`
}

// Validate ensures the phase can be run.
func (p Phase) Validate() error {
	if p.Episodes <= 0 {
		return errors.New("episodes must be > 0")
	}
	if err := p.Exploration.Validate(); err != nil {
		return fmt.Errorf("exploration: %w", err)
	}
	if p.MaxGradNorm < 0 {
		return errors.New("max grad norm cannot be negative")
	}
	if p.LearningRate < 0 {
		return errors.New("learning rate cannot be negative")
	}
	return nil
}

// Params converts the phase into the settings every policy is reset to.
func (p Phase) Params() policy.PhaseParams {
	return policy.PhaseParams{
		Exploration:  p.Exploration,
		MaxGradNorm:  p.MaxGradNorm,
		LearningRate: p.LearningRate,
	}
}

// Config aggregates parameters that control a training run.
type Config struct {
	Phases    []Phase `json:"phases"`
	BatchSize int     `json:"batch_size"`
	// SyncEvery copies live estimators into their stabilising copies every
	// SyncEvery episodes. Zero disables syncing.
	SyncEvery       int           `json:"sync_every"`
	Seed            int64         `json:"seed"`
	ProgressEvery   int           `json:"progress_every"`
	CheckpointEvery time.Duration `json:"checkpoint_every"`
	ParallelUpdates int           `json:"parallel_updates"`
	// Evaluate runs an exploit-only draft at the end of every phase.
	Evaluate bool `json:"evaluate"`
}

// Validate ensures the training parameters are safe to use.
func (c Config) Validate() error {
	if len(c.Phases) == 0 {
		return errors.New("at least one phase is required")
	}
	for i, p := range c.Phases {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("phase %d (%s): %w", i, p.Name, err)
		}
	}
	if c.BatchSize <= 0 {
		return errors.New("batch size must be > 0")
	}
	if c.SyncEvery < 0 {
		return errors.New("sync interval cannot be negative")
	}
	if c.ProgressEvery < 0 {
		return errors.New("progress interval cannot be negative")
	}
	if c.CheckpointEvery < 0 {
		return errors.New("checkpoint interval cannot be negative")
	}
	if c.ParallelUpdates < 0 {
		return errors.New("parallel updates cannot be negative")
	}
	return nil
}

// TotalEpisodes sums the episodes of every phase.
func (c Config) TotalEpisodes() int {
	n := 0
	for _, p := range c.Phases {
		n += p.Episodes
	}
	return n
}

// DefaultConfig is the three-phase softmax routine: temperature starts high
// and anneals faster in each phase while the gradient clip tightens.
func DefaultConfig() Config {
	return Config{
		Phases: []Phase{
			{
				Name:         "explore",
				Episodes:     2000,
				Exploration:  policy.Schedule{Initial: 3, Decay: 0.9995, Floor: 1},
				MaxGradNorm:  1,
				LearningRate: 5e-3,
			},
			{
				Name:         "refine",
				Episodes:     2000,
				Exploration:  policy.Schedule{Initial: 2, Decay: 0.99935, Floor: 0.5},
				MaxGradNorm:  0.75,
				LearningRate: 5e-3,
			},
			{
				Name:         "exploit",
				Episodes:     1000,
				Exploration:  policy.Schedule{Initial: 1, Decay: 0.9975, Floor: 0.1},
				MaxGradNorm:  0.5,
				LearningRate: 5e-3,
			},
		},
		BatchSize:       240,
		SyncEvery:       10,
		Seed:            1,
		ProgressEvery:   0,
		CheckpointEvery: 5 * time.Minute,
		ParallelUpdates: 1,
		Evaluate:        true,
	}
}
