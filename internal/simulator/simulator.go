// Package simulator assembles a league from configuration and runs training
// sessions or single drafts against it.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lox/snakedraft/internal/config"
	"github.com/lox/snakedraft/internal/dataset"
	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/policy"
	"github.com/lox/snakedraft/internal/randutil"
	"github.com/lox/snakedraft/internal/replay"
	"github.com/lox/snakedraft/internal/statistics"
	"github.com/lox/snakedraft/internal/trainer"
)

// Options overrides parts of the session that do not come from the
// configuration file.
type Options struct {
	// Items replaces the configured dataset.
	Items  []draft.Item
	Clock  quartz.Clock
	Logger *log.Logger
}

// Session is one league: its pool, teams, policies and the trainer that
// drives them.
type Session struct {
	cfg      *config.Config
	engine   *draft.Engine
	buffer   *replay.Buffer
	trainer  *trainer.Trainer
	policies []policy.Policy
	clock    quartz.Clock
	logger   *log.Logger
}

// Result summarises a finished training run.
type Result struct {
	RunID       uuid.UUID
	Episodes    int
	Elapsed     time.Duration
	Statistics  []*statistics.Statistics
	Evaluations []trainer.Evaluation
}

// New validates cfg and builds a session around it.
func New(cfg *config.Config, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("simulator requires a configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}

	items := opts.Items
	if items == nil {
		var err error
		if items, err = LoadItems(cfg); err != nil {
			return nil, err
		}
	}
	categories := cfg.CategoryNames()
	pool, err := draft.NewPool(items, len(categories))
	if err != nil {
		return nil, err
	}
	need := cfg.League.Teams * cfg.League.Rounds
	if pool.Size() < need {
		logger.Warn("pool smaller than the draft", "items", pool.Size(), "picks", need)
	}

	kind, err := policy.ParseKind(cfg.Policy.Kind)
	if err != nil {
		return nil, err
	}
	teams := make([]*draft.Team, cfg.League.Teams)
	policies := make([]policy.Policy, cfg.League.Teams)
	for i := range teams {
		p, err := newPolicy(cfg, kind, i)
		if err != nil {
			return nil, fmt.Errorf("team %d policy: %w", i+1, err)
		}
		policies[i] = p
		teams[i] = draft.NewTeam(i, fmt.Sprintf("Team %d", i+1), len(categories), p)
	}

	buffer, err := replay.NewBuffer(cfg.Training.BufferCapacity)
	if err != nil {
		return nil, err
	}
	ec, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := draft.NewEngine(ec, pool, teams, buffer, logger)
	if err != nil {
		return nil, err
	}
	tc, err := cfg.TrainerConfig()
	if err != nil {
		return nil, err
	}
	tr, err := trainer.New(tc, engine, buffer, clock, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Training.Checkpoint != "" {
		tr.EnableCheckpoints(cfg.Training.Checkpoint)
	}

	logger.Debug("session ready", "teams", len(teams), "rounds", ec.Rounds, "mode", ec.Mode,
		"policy", kind, "items", pool.Size())

	return &Session{
		cfg:      cfg,
		engine:   engine,
		buffer:   buffer,
		trainer:  tr,
		policies: policies,
		clock:    clock,
		logger:   logger,
	}, nil
}

// LoadItems reads the configured dataset, or the debug board when none is
// set.
func LoadItems(cfg *config.Config) ([]draft.Item, error) {
	if cfg.League.Dataset == "" {
		if !slices.Equal(cfg.CategoryNames(), dataset.DebugCategories()) {
			return nil, errors.New("no dataset configured and categories differ from the debug board")
		}
		return dataset.DebugBoard(), nil
	}
	return dataset.LoadFile(cfg.League.Dataset, cfg.CategoryNames(), dataset.Options{
		SkipUnknown: cfg.League.SkipUnknown,
	})
}

// Each team draws exploration and initial weights from its own streams so
// adding a team never perturbs the others.
func newPolicy(cfg *config.Config, kind policy.Kind, team int) (policy.Policy, error) {
	seed := lo.FromPtr(cfg.Training.Seed)
	explore := randutil.NewStream(seed, randutil.StreamExploration, team)
	switch kind {
	case policy.KindTabular:
		return policy.NewTabular(cfg.TabularConfig(), explore)
	case policy.KindApproximated:
		return policy.NewApproximated(cfg.ApproxConfig(), explore, randutil.NewStream(seed, randutil.StreamWeights, team))
	default:
		return nil, fmt.Errorf("unsupported policy kind %v", kind)
	}
}

// Train runs every remaining phase.
func (s *Session) Train(ctx context.Context, progress func(trainer.Progress)) (*Result, error) {
	start := s.clock.Now()
	if err := s.trainer.Run(ctx, progress); err != nil {
		return nil, err
	}
	return &Result{
		RunID:       s.trainer.RunID(),
		Episodes:    s.trainer.Episode(),
		Elapsed:     s.clock.Since(start),
		Statistics:  s.trainer.Statistics(),
		Evaluations: s.trainer.Evaluations(),
	}, nil
}

// Resume continues training from the checkpoint at path.
func (s *Session) Resume(path string) error {
	cp, err := trainer.LoadCheckpoint(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if err := s.trainer.Resume(cp); err != nil {
		return err
	}
	s.logger.Info("resumed", "checkpoint", path, "episode", cp.Episode, "run", cp.RunID)
	return nil
}

// Restore loads only the learned policies from the checkpoint at path.
func (s *Session) Restore(path string) error {
	cp, err := trainer.LoadCheckpoint(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	return cp.RestorePolicies(s.policies)
}

// Draft runs one exploit-only draft with the current policies.
func (s *Session) Draft(ctx context.Context) (*draft.Summary, error) {
	return s.engine.Run(ctx, false)
}

func (s *Session) Config() *config.Config { return s.cfg }

func (s *Session) Engine() *draft.Engine { return s.engine }

func (s *Session) Trainer() *trainer.Trainer { return s.trainer }

// Categories returns the category names in action order.
func (s *Session) Categories() draft.Categories { return s.cfg.CategoryNames() }
