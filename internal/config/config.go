// Package config loads snake-draft run configuration from HCL.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/samber/lo"

	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/policy"
	"github.com/lox/snakedraft/internal/trainer"
)

// Config represents a complete run configuration
type Config struct {
	League     *LeagueSettings   `hcl:"league,block"`
	Categories []CategoryConfig  `hcl:"category,block"`
	Policy     *PolicySettings   `hcl:"policy,block"`
	Training   *TrainingSettings `hcl:"training,block"`
	Phases     []PhaseConfig     `hcl:"phase,block"`
}

// LeagueSettings describes the draft itself
type LeagueSettings struct {
	Teams         int    `hcl:"teams,optional"`
	Rounds        int    `hcl:"rounds,optional"`
	Mode          string `hcl:"mode,optional"`
	OnlineUpdates bool   `hcl:"online_updates,optional"`
	Dataset       string `hcl:"dataset,optional"`
	SkipUnknown   bool   `hcl:"skip_unknown_categories,optional"`
	LogLevel      string `hcl:"log_level,optional"`
}

// CategoryConfig is one draftable category and its per-team limit
type CategoryConfig struct {
	Name  string `hcl:"name,label"`
	Limit int    `hcl:"limit"`
}

// PolicySettings selects and tunes the policy every team is bound to.
// Pointer fields are ones where zero is a meaningful setting.
type PolicySettings struct {
	Kind         string   `hcl:"kind,optional"`
	Selection    string   `hcl:"selection,optional"`
	Discount     *float64 `hcl:"discount,optional"`
	LearningRate float64  `hcl:"learning_rate,optional"`
	HiddenLayers []int    `hcl:"hidden_layers,optional"`
	WeightDecay  *float64 `hcl:"weight_decay,optional"`
	LRStepEvery  *int     `hcl:"lr_step_every,optional"`
	LRStepGamma  float64  `hcl:"lr_step_gamma,optional"`
}

// TrainingSettings controls the episode loop
type TrainingSettings struct {
	BufferCapacity  int    `hcl:"buffer_capacity,optional"`
	BatchSize       int    `hcl:"batch_size,optional"`
	SyncEvery       *int   `hcl:"sync_every,optional"`
	Seed            *int64 `hcl:"seed,optional"`
	ProgressEvery   int    `hcl:"progress_every,optional"`
	CheckpointEvery string `hcl:"checkpoint_every,optional"`
	Checkpoint      string `hcl:"checkpoint,optional"`
	ParallelUpdates *int   `hcl:"parallel_updates,optional"`
	Evaluate        *bool  `hcl:"evaluate,optional"`
}

// PhaseConfig is one training phase. Missing optimiser settings come from
// the default phase in the same position.
type PhaseConfig struct {
	Name         string   `hcl:"name,label"`
	Episodes     int      `hcl:"episodes"`
	Exploration  float64  `hcl:"exploration"`
	Decay        float64  `hcl:"decay"`
	Floor        float64  `hcl:"floor"`
	MaxGradNorm  *float64 `hcl:"max_grad_norm,optional"`
	LearningRate *float64 `hcl:"learning_rate,optional"`
}

// DefaultConfig is a twelve-team, twenty-round league with the three-phase
// softmax schedule.
func DefaultConfig() *Config {
	evaluate := true
	cfg := &Config{
		League: &LeagueSettings{
			Teams:    12,
			Rounds:   20,
			Mode:     draft.ModeSoftLimit.String(),
			LogLevel: "info",
		},
		Categories: []CategoryConfig{
			{Name: "QB", Limit: 3},
			{Name: "RB", Limit: 7},
			{Name: "WR", Limit: 8},
			{Name: "TE", Limit: 3},
		},
		Policy: &PolicySettings{
			Kind:         policy.KindApproximated.String(),
			Selection:    policy.SelectionSoftmax.String(),
			Discount:     lo.ToPtr(0.8),
			LearningRate: 0.2,
			WeightDecay:  lo.ToPtr(0.01),
			LRStepEvery:  lo.ToPtr(2000),
			LRStepGamma:  0.25,
		},
		Training: &TrainingSettings{
			BufferCapacity:  2400,
			BatchSize:       240,
			SyncEvery:       lo.ToPtr(10),
			Seed:            lo.ToPtr(int64(1)),
			ProgressEvery:   10,
			CheckpointEvery: "5m",
			ParallelUpdates: lo.ToPtr(4),
			Evaluate:        &evaluate,
		},
	}
	for _, p := range trainer.DefaultConfig().Phases {
		cfg.Phases = append(cfg.Phases, PhaseConfig{
			Name:         p.Name,
			Episodes:     p.Episodes,
			Exploration:  p.Exploration.Initial,
			Decay:        p.Exploration.Decay,
			Floor:        p.Exploration.Floor,
			MaxGradNorm:  lo.ToPtr(p.MaxGradNorm),
			LearningRate: lo.ToPtr(p.LearningRate),
		})
	}
	return cfg
}

// Load reads an HCL configuration file. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and fills unset fields with defaults.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.League == nil {
		c.League = &LeagueSettings{}
	}
	if c.Policy == nil {
		c.Policy = &PolicySettings{}
	}
	if c.Training == nil {
		c.Training = &TrainingSettings{}
	}

	if c.League.Teams == 0 {
		c.League.Teams = def.League.Teams
	}
	if c.League.Rounds == 0 {
		c.League.Rounds = def.League.Rounds
	}
	if c.Policy.Kind == "" {
		c.Policy.Kind = def.Policy.Kind
	}
	if c.League.Mode == "" {
		c.League.Mode = def.League.Mode
		if c.Policy.Kind == policy.KindTabular.String() {
			c.League.Mode = draft.ModeHardCap.String()
		}
	}
	if c.League.LogLevel == "" {
		c.League.LogLevel = def.League.LogLevel
	}
	if len(c.Categories) == 0 {
		c.Categories = def.Categories
	}

	if c.Policy.Selection == "" {
		c.Policy.Selection = def.Policy.Selection
	}
	if c.Policy.Discount == nil {
		// The tabular drafter was tuned with a longer horizon.
		if c.Policy.Kind == policy.KindTabular.String() {
			c.Policy.Discount = lo.ToPtr(policy.DefaultTabularConfig().Discount)
		} else {
			c.Policy.Discount = def.Policy.Discount
		}
	}
	if c.Policy.LearningRate == 0 {
		c.Policy.LearningRate = def.Policy.LearningRate
	}
	if c.Policy.WeightDecay == nil {
		c.Policy.WeightDecay = def.Policy.WeightDecay
	}
	if c.Policy.LRStepEvery == nil {
		c.Policy.LRStepEvery = def.Policy.LRStepEvery
	}
	if c.Policy.LRStepGamma == 0 {
		c.Policy.LRStepGamma = def.Policy.LRStepGamma
	}

	if c.Training.BufferCapacity == 0 {
		c.Training.BufferCapacity = def.Training.BufferCapacity
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = def.Training.BatchSize
	}
	if c.Training.SyncEvery == nil {
		c.Training.SyncEvery = def.Training.SyncEvery
	}
	if c.Training.Seed == nil {
		c.Training.Seed = def.Training.Seed
	}
	if c.Training.CheckpointEvery == "" {
		c.Training.CheckpointEvery = def.Training.CheckpointEvery
	}
	if c.Training.ParallelUpdates == nil {
		c.Training.ParallelUpdates = def.Training.ParallelUpdates
	}
	if c.Training.Evaluate == nil {
		c.Training.Evaluate = def.Training.Evaluate
	}
	if len(c.Phases) == 0 {
		c.Phases = def.Phases
	}
	for i := range c.Phases {
		ref := def.Phases[min(i, len(def.Phases)-1)]
		if c.Phases[i].MaxGradNorm == nil {
			c.Phases[i].MaxGradNorm = ref.MaxGradNorm
		}
		if c.Phases[i].LearningRate == nil {
			c.Phases[i].LearningRate = ref.LearningRate
		}
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.League.Teams < 1 {
		return fmt.Errorf("invalid team count: %d", c.League.Teams)
	}
	if c.League.Rounds < 1 {
		return fmt.Errorf("invalid round count: %d", c.League.Rounds)
	}
	if _, err := draft.ParseMode(c.League.Mode); err != nil {
		return err
	}
	if err := c.CategoryNames().Validate(); err != nil {
		return err
	}
	for _, cat := range c.Categories {
		if cat.Limit < 0 {
			return fmt.Errorf("category %s: limit cannot be negative", cat.Name)
		}
	}

	kind, err := policy.ParseKind(c.Policy.Kind)
	if err != nil {
		return err
	}
	mode, _ := draft.ParseMode(c.League.Mode)
	if kind == policy.KindApproximated && mode != draft.ModeSoftLimit {
		return errors.New("approximated policies pick categories and need the soft-limit mode")
	}
	if _, err := policy.ParseSelection(c.Policy.Selection); err != nil {
		return err
	}
	if _, err := c.CheckpointInterval(); err != nil {
		return err
	}
	if c.Training.BufferCapacity < c.Training.BatchSize {
		return fmt.Errorf("buffer capacity %d smaller than batch size %d", c.Training.BufferCapacity, c.Training.BatchSize)
	}

	tc, err := c.TrainerConfig()
	if err != nil {
		return err
	}
	if err := tc.Validate(); err != nil {
		return err
	}
	switch kind {
	case policy.KindTabular:
		return c.TabularConfig().Validate()
	default:
		return c.validateApprox(tc.Phases)
	}
}

func (c *Config) validateApprox(phases []trainer.Phase) error {
	ac := c.ApproxConfig()
	if err := ac.Validate(); err != nil {
		return err
	}
	for _, p := range phases {
		if p.LearningRate <= 0 {
			return fmt.Errorf("phase %s: learning_rate must be > 0 for approximated policies", p.Name)
		}
		// Decay never goes below the floor, so a positive floor keeps the
		// temperature positive for the whole phase.
		if ac.Selection == policy.SelectionSoftmax && p.Exploration.Floor <= 0 {
			return fmt.Errorf("phase %s: softmax temperature floor must be > 0", p.Name)
		}
	}
	return nil
}

// CategoryNames returns the category enumeration in declaration order.
func (c *Config) CategoryNames() draft.Categories {
	out := make(draft.Categories, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = cat.Name
	}
	return out
}

// Limits returns the per-team limit of every category in declaration order.
func (c *Config) Limits() []int {
	out := make([]int, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = cat.Limit
	}
	return out
}

// CheckpointInterval parses training.checkpoint_every. Empty disables
// periodic checkpoints.
func (c *Config) CheckpointInterval() (time.Duration, error) {
	if c.Training.CheckpointEvery == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Training.CheckpointEvery)
	if err != nil {
		return 0, fmt.Errorf("invalid checkpoint_every: %w", err)
	}
	return d, nil
}

// EngineConfig converts the league block into engine settings.
func (c *Config) EngineConfig() (draft.Config, error) {
	mode, err := draft.ParseMode(c.League.Mode)
	if err != nil {
		return draft.Config{}, err
	}
	return draft.Config{
		Rounds:        c.League.Rounds,
		Limits:        c.Limits(),
		Mode:          mode,
		OnlineUpdates: c.League.OnlineUpdates,
	}, nil
}

// TrainerConfig converts the training and phase blocks.
func (c *Config) TrainerConfig() (trainer.Config, error) {
	every, err := c.CheckpointInterval()
	if err != nil {
		return trainer.Config{}, err
	}
	tc := trainer.Config{
		BatchSize:       c.Training.BatchSize,
		SyncEvery:       lo.FromPtr(c.Training.SyncEvery),
		Seed:            lo.FromPtr(c.Training.Seed),
		ProgressEvery:   c.Training.ProgressEvery,
		CheckpointEvery: every,
		ParallelUpdates: lo.FromPtr(c.Training.ParallelUpdates),
		Evaluate:        c.Training.Evaluate == nil || *c.Training.Evaluate,
	}
	for _, p := range c.Phases {
		tc.Phases = append(tc.Phases, trainer.Phase{
			Name:         p.Name,
			Episodes:     p.Episodes,
			Exploration:  policy.Schedule{Initial: p.Exploration, Decay: p.Decay, Floor: p.Floor},
			MaxGradNorm:  lo.FromPtr(p.MaxGradNorm),
			LearningRate: lo.FromPtr(p.LearningRate),
		})
	}
	return tc, nil
}

// StateSize is the width of the encoded state vector.
func (c *Config) StateSize() int {
	return len(c.Categories) * c.League.Teams
}

// ApproxConfig builds the approximated policy structure for this league.
func (c *Config) ApproxConfig() policy.ApproxConfig {
	ac := policy.DefaultApproxConfig(c.StateSize(), len(c.Categories))
	if len(c.Policy.HiddenLayers) > 0 {
		ac.HiddenLayers = append([]int(nil), c.Policy.HiddenLayers...)
	}
	ac.Discount = lo.FromPtr(c.Policy.Discount)
	ac.Selection, _ = policy.ParseSelection(c.Policy.Selection)
	ac.WeightDecay = lo.FromPtr(c.Policy.WeightDecay)
	ac.LRStepEvery = lo.FromPtr(c.Policy.LRStepEvery)
	ac.LRStepGamma = c.Policy.LRStepGamma
	return ac
}

// TabularConfig builds the tabular policy settings.
func (c *Config) TabularConfig() policy.TabularConfig {
	return policy.TabularConfig{
		LearningRate: c.Policy.LearningRate,
		Discount:     lo.FromPtr(c.Policy.Discount),
	}
}
