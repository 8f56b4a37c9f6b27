// Package trainer drives many draft episodes through a sequence of phases,
// feeding sampled transitions back into every team's policy.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/policy"
	"github.com/lox/snakedraft/internal/randutil"
	"github.com/lox/snakedraft/internal/replay"
	"github.com/lox/snakedraft/internal/statistics"
)

// Progress is emitted during a run.
type Progress struct {
	Phase         int
	PhaseName     string
	Episode       int // episodes completed across all phases
	PhaseEpisode  int // episodes completed in the current phase
	TotalEpisodes int
	MeanReward    float64 // mean over teams for the last episode
	Exploration   []float64
	BufferLen     int
	Elapsed       time.Duration
	// PhaseDone marks the single update sent after a phase's last episode.
	PhaseDone  bool
	Evaluation *draft.Summary // set on the PhaseDone update when evaluation is enabled
}

// Evaluation is the exploit-only draft run at the end of a phase.
type Evaluation struct {
	Phase   string         `json:"phase"`
	Episode int            `json:"episode"`
	Summary *draft.Summary `json:"summary"`
}

// Trainer owns the run loop. It is not safe for concurrent use; policy
// updates fan out internally but join before the next episode starts.
type Trainer struct {
	cfg    Config
	engine *draft.Engine
	buffer *replay.Buffer
	clock  quartz.Clock
	logger *log.Logger
	runID  uuid.UUID

	episode      int
	phase        int
	phaseEpisode int
	configured   bool

	stats       []*statistics.Statistics
	exploration [][]float64
	evaluations []Evaluation

	checkpointPath string
	lastCheckpoint time.Time
}

// New builds a trainer around an engine whose transitions land in buffer.
func New(cfg Config, engine *draft.Engine, buffer *replay.Buffer, clock quartz.Clock, logger *log.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || buffer == nil {
		return nil, errors.New("trainer requires an engine and a buffer")
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = log.Default()
	}
	teams := engine.Teams()
	t := &Trainer{
		cfg:         cfg,
		engine:      engine,
		buffer:      buffer,
		clock:       clock,
		logger:      logger.WithPrefix("trainer"),
		runID:       uuid.New(),
		stats:       make([]*statistics.Statistics, len(teams)),
		exploration: make([][]float64, len(teams)),
	}
	for i := range t.stats {
		t.stats[i] = &statistics.Statistics{}
	}
	return t, nil
}

// EnableCheckpoints writes a checkpoint to path whenever CheckpointEvery has
// elapsed on the trainer's clock, and once more when the run ends.
func (t *Trainer) EnableCheckpoints(path string) {
	t.checkpointPath = path
	t.lastCheckpoint = t.clock.Now()
}

// Run trains through every remaining phase.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	start := t.clock.Now()
	total := t.cfg.TotalEpisodes()

	for t.phase < len(t.cfg.Phases) {
		phase := t.cfg.Phases[t.phase]
		if !t.configured {
			t.configure(phase)
		}

		for t.phaseEpisode < phase.Episodes {
			if err := ctx.Err(); err != nil {
				return err
			}
			summary, err := t.engine.Run(ctx, true)
			if err != nil {
				return fmt.Errorf("episode %d: %w", t.episode, err)
			}
			if err := t.update(ctx); err != nil {
				return fmt.Errorf("episode %d: %w", t.episode, err)
			}
			for _, team := range t.engine.Teams() {
				team.Policy.Decay()
			}
			t.record(summary)
			if t.cfg.SyncEvery > 0 && t.episode%t.cfg.SyncEvery == 0 {
				t.syncTargets()
			}
			t.episode++
			t.phaseEpisode++

			if err := t.maybeCheckpoint(); err != nil {
				return err
			}
			if progress != nil && t.cfg.ProgressEvery > 0 && t.episode%t.cfg.ProgressEvery == 0 {
				progress(t.progress(summary, total, start))
			}
		}

		var eval *draft.Summary
		if t.cfg.Evaluate {
			summary, err := t.engine.Run(ctx, false)
			if err != nil {
				return fmt.Errorf("evaluate phase %s: %w", phase.Name, err)
			}
			eval = summary
			t.evaluations = append(t.evaluations, Evaluation{Phase: phase.Name, Episode: t.episode, Summary: summary})
			t.logger.Info("phase complete", "phase", phase.Name, "episodes", t.episode,
				"avg_reward", summary.MeanReward(), "avg_points", summary.MeanPoints())
		}
		if progress != nil {
			p := t.progress(eval, total, start)
			p.PhaseDone = true
			p.Evaluation = eval
			progress(p)
		}
		t.phase++
		t.phaseEpisode = 0
		t.configured = false
	}

	if t.checkpointPath != "" {
		if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) configure(phase Phase) {
	params := phase.Params()
	for _, team := range t.engine.Teams() {
		team.Policy.Configure(params)
	}
	t.configured = true
	t.logger.Debug("phase start", "phase", phase.Name, "episodes", phase.Episodes,
		"exploration", phase.Exploration.Initial, "lr", phase.LearningRate, "clip", phase.MaxGradNorm)
}

// update samples one batch per team and applies the updates. Batches are
// drawn sequentially from a per-episode stream so the trajectory does not
// depend on how the updates are scheduled.
func (t *Trainer) update(ctx context.Context) error {
	teams := t.engine.Teams()
	sampler := randutil.NewStream(t.cfg.Seed, randutil.StreamReplay, t.episode)
	batches := make([][]replay.Experience, len(teams))
	for i := range teams {
		batch, err := t.buffer.Sample(t.cfg.BatchSize, sampler)
		if errors.Is(err, replay.ErrInsufficientData) {
			t.logger.Debug("skipping update", "episode", t.episode, "buffer", t.buffer.Len(), "batch", t.cfg.BatchSize)
			return nil
		}
		if err != nil {
			return err
		}
		batches[i] = batch
	}

	g, _ := errgroup.WithContext(ctx)
	if t.cfg.ParallelUpdates > 0 {
		g.SetLimit(t.cfg.ParallelUpdates)
	}
	for i, team := range teams {
		g.Go(func() error {
			if err := team.Policy.Update(batches[i]); err != nil {
				return fmt.Errorf("update team %s: %w", team.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (t *Trainer) record(summary *draft.Summary) {
	for i, team := range t.engine.Teams() {
		ts := summary.Teams[i]
		t.stats[i].Add(statistics.EpisodeResult{
			Reward:      ts.Reward,
			Points:      ts.Points,
			Penalties:   ts.Penalties,
			Exploration: team.Policy.Exploration(),
		})
		t.exploration[i] = append(t.exploration[i], team.Policy.Exploration())
	}
}

func (t *Trainer) syncTargets() {
	for _, team := range t.engine.Teams() {
		if s, ok := team.Policy.(policy.Synchronizer); ok {
			s.SyncTarget()
		}
	}
}

func (t *Trainer) maybeCheckpoint() error {
	if t.checkpointPath == "" || t.cfg.CheckpointEvery <= 0 {
		return nil
	}
	if t.clock.Since(t.lastCheckpoint) < t.cfg.CheckpointEvery {
		return nil
	}
	if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
		return err
	}
	t.lastCheckpoint = t.clock.Now()
	t.logger.Debug("checkpoint written", "path", t.checkpointPath, "episode", t.episode)
	return nil
}

func (t *Trainer) progress(summary *draft.Summary, total int, start time.Time) Progress {
	p := Progress{
		Phase:         t.phase,
		PhaseName:     t.cfg.Phases[min(t.phase, len(t.cfg.Phases)-1)].Name,
		Episode:       t.episode,
		PhaseEpisode:  t.phaseEpisode,
		TotalEpisodes: total,
		BufferLen:     t.buffer.Len(),
		Elapsed:       t.clock.Since(start),
	}
	if summary != nil {
		p.MeanReward = summary.MeanReward()
	}
	for _, team := range t.engine.Teams() {
		p.Exploration = append(p.Exploration, team.Policy.Exploration())
	}
	return p
}

// Episode is the number of training episodes completed.
func (t *Trainer) Episode() int { return t.episode }

// RunID identifies this run in checkpoints.
func (t *Trainer) RunID() uuid.UUID { return t.runID }

func (t *Trainer) Config() Config { return t.cfg }

// Statistics returns the per-team reward summaries in team order.
func (t *Trainer) Statistics() []*statistics.Statistics { return t.stats }

// RewardHistory returns each team's accumulated reward per episode.
func (t *Trainer) RewardHistory() [][]float64 {
	out := make([][]float64, len(t.stats))
	for i, s := range t.stats {
		out[i] = append([]float64(nil), s.Values...)
	}
	return out
}

// ExplorationHistory returns each team's exploration value after every episode.
func (t *Trainer) ExplorationHistory() [][]float64 {
	out := make([][]float64, len(t.exploration))
	for i, e := range t.exploration {
		out[i] = append([]float64(nil), e...)
	}
	return out
}

// Evaluations returns the end-of-phase exploit drafts run so far.
func (t *Trainer) Evaluations() []Evaluation { return t.evaluations }
