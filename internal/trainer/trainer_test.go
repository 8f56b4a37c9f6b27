package trainer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/policy"
	"github.com/lox/snakedraft/internal/randutil"
	"github.com/lox/snakedraft/internal/replay"
)

// countingPolicy always drafts the first legal action and records how the
// trainer drives it.
type countingPolicy struct {
	configured []policy.PhaseParams
	updates    int
	batchSizes []int
	decays     int
	syncs      int
	value      float64
}

func (c *countingPolicy) Kind() policy.Kind { return policy.KindApproximated }

func (c *countingPolicy) ChooseAction(obs policy.Observation, _ bool) (int, error) {
	return obs.Legal[0], nil
}

func (c *countingPolicy) Update(batch []replay.Experience) error {
	c.updates++
	c.batchSizes = append(c.batchSizes, len(batch))
	return nil
}

func (c *countingPolicy) Configure(p policy.PhaseParams) {
	c.configured = append(c.configured, p)
	c.value = p.Exploration.Initial
}

func (c *countingPolicy) Decay() {
	c.decays++
}

func (c *countingPolicy) Exploration() float64 { return c.value }
func (c *countingPolicy) SyncTarget()          { c.syncs++ }

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func testPool(t *testing.T) *draft.Pool {
	t.Helper()
	values := [][]float64{
		{360, 330, 300, 270},
		{280, 220, 180, 150},
		{210, 170, 150, 140},
	}
	var items []draft.Item
	for c, vs := range values {
		for i, v := range vs {
			items = append(items, draft.Item{Name: string(rune('a'+c)) + string(rune('0'+i)), Category: c, Value: v})
		}
	}
	p, err := draft.NewPool(items, len(values))
	require.NoError(t, err)
	return p
}

func testEngine(t *testing.T, policies []policy.Policy, rounds, capacity int) (*draft.Engine, *replay.Buffer) {
	t.Helper()
	pool := testPool(t)
	buf, err := replay.NewBuffer(capacity)
	require.NoError(t, err)
	teams := make([]*draft.Team, len(policies))
	for i, p := range policies {
		teams[i] = draft.NewTeam(i, string(rune('A'+i)), pool.Categories(), p)
	}
	e, err := draft.NewEngine(draft.Config{Rounds: rounds, Limits: []int{1, 2, 2}}, pool, teams, buf, testLogger())
	require.NoError(t, err)
	return e, buf
}

func twoPhaseConfig() Config {
	return Config{
		Phases: []Phase{
			{Name: "warm", Episodes: 3, Exploration: policy.Schedule{Initial: 2, Decay: 0.9, Floor: 1}, MaxGradNorm: 1, LearningRate: 0.01},
			{Name: "cool", Episodes: 2, Exploration: policy.Schedule{Initial: 1, Decay: 0.5, Floor: 0.1}, MaxGradNorm: 0.5, LearningRate: 0.005},
		},
		BatchSize:       6,
		SyncEvery:       2,
		Seed:            42,
		ProgressEvery:   1,
		ParallelUpdates: 2,
		Evaluate:        true,
	}
}

func approximated(t *testing.T, teams, categories int, seed int64) []policy.Policy {
	t.Helper()
	out := make([]policy.Policy, teams)
	for i := range out {
		cfg := policy.DefaultApproxConfig(teams*categories, categories)
		cfg.HiddenLayers = []int{8}
		p, err := policy.NewApproximated(cfg,
			randutil.NewStream(seed, randutil.StreamExploration, i),
			randutil.NewStream(seed, randutil.StreamWeights, i))
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func TestRunDrivesPoliciesThroughPhases(t *testing.T) {
	a, b := &countingPolicy{}, &countingPolicy{}
	engine, buf := testEngine(t, []policy.Policy{a, b}, 2, 100)
	tr, err := New(twoPhaseConfig(), engine, buf, quartz.NewMock(t), testLogger())
	require.NoError(t, err)

	var progress []Progress
	require.NoError(t, tr.Run(context.Background(), func(p Progress) { progress = append(progress, p) }))

	assert.Equal(t, 5, tr.Episode())
	for _, p := range []*countingPolicy{a, b} {
		require.Len(t, p.configured, 2)
		assert.Equal(t, 2.0, p.configured[0].Exploration.Initial)
		assert.Equal(t, 0.005, p.configured[1].LearningRate)
		assert.Equal(t, 5, p.decays)
		// Episodes 0, 2 and 4.
		assert.Equal(t, 3, p.syncs)
		// Four transitions per episode: the first episode cannot fill a batch of six.
		assert.Equal(t, 4, p.updates)
		for _, n := range p.batchSizes {
			assert.Equal(t, 6, n)
		}
	}

	// One per episode plus one per phase end.
	require.Len(t, progress, 7)
	assert.Equal(t, "warm", progress[0].PhaseName)
	assert.Equal(t, 1, progress[0].Episode)
	assert.Equal(t, 5, progress[0].TotalEpisodes)
	assert.NotNil(t, progress[3].Evaluation)
	assert.True(t, progress[3].PhaseDone)
	assert.False(t, progress[2].PhaseDone)
	assert.NotNil(t, progress[6].Evaluation)

	require.Len(t, tr.Evaluations(), 2)
	assert.Equal(t, "cool", tr.Evaluations()[1].Phase)

	history := tr.RewardHistory()
	require.Len(t, history, 2)
	assert.Len(t, history[0], 5)
	assert.Len(t, tr.ExplorationHistory()[1], 5)
	for _, s := range tr.Statistics() {
		require.NoError(t, s.Validate())
	}
}

func TestRunIsReproducible(t *testing.T) {
	run := func() ([][]float64, []draft.Pick) {
		engine, buf := testEngine(t, approximated(t, 2, 3, 7), 3, 50)
		cfg := twoPhaseConfig()
		cfg.ProgressEvery = 0
		tr, err := New(cfg, engine, buf, quartz.NewMock(t), testLogger())
		require.NoError(t, err)
		require.NoError(t, tr.Run(context.Background(), nil))
		evals := tr.Evaluations()
		return tr.RewardHistory(), evals[len(evals)-1].Summary.Picks
	}
	rewardsA, picksA := run()
	rewardsB, picksB := run()
	assert.Equal(t, rewardsA, rewardsB)
	assert.Equal(t, picksA, picksB)
}

func TestRunHonoursCancellation(t *testing.T) {
	engine, buf := testEngine(t, []policy.Policy{&countingPolicy{}}, 2, 10)
	tr, err := New(twoPhaseConfig(), engine, buf, quartz.NewMock(t), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.Run(ctx, nil), context.Canceled)
	assert.Equal(t, 0, tr.Episode())
}

func TestRunSurfacesFatalDraftErrors(t *testing.T) {
	pool := testPool(t)
	buf, err := replay.NewBuffer(10)
	require.NoError(t, err)
	tab, err := policy.NewTabular(policy.DefaultTabularConfig(), randutil.New(1))
	require.NoError(t, err)
	team := draft.NewTeam(0, "solo", pool.Categories(), tab)
	engine, err := draft.NewEngine(draft.Config{Rounds: 4, Limits: []int{1, 1, 1}, Mode: draft.ModeHardCap},
		pool, []*draft.Team{team}, buf, testLogger())
	require.NoError(t, err)

	tr, err := New(twoPhaseConfig(), engine, buf, quartz.NewMock(t), testLogger())
	require.NoError(t, err)
	err = tr.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, draft.ErrNoLegalActions)
}

func TestCheckpointCadenceFollowsClock(t *testing.T) {
	mClock := quartz.NewMock(t)
	policies := approximated(t, 2, 3, 3)
	engine, buf := testEngine(t, policies, 2, 50)
	cfg := twoPhaseConfig()
	cfg.CheckpointEvery = time.Minute
	tr, err := New(cfg, engine, buf, mClock, testLogger())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ckpt", "run.json")
	tr.EnableCheckpoints(path)

	var sawCheckpoint bool
	err = tr.Run(context.Background(), func(p Progress) {
		if p.Episode == 2 {
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "no checkpoint before the interval elapses")
			mClock.Advance(time.Minute)
		}
		if p.Episode == 3 && p.Evaluation == nil {
			cp, loadErr := LoadCheckpoint(path)
			require.NoError(t, loadErr)
			assert.Equal(t, 3, cp.Episode)
			sawCheckpoint = true
		}
	})
	require.NoError(t, err)
	assert.True(t, sawCheckpoint)

	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cp.Episode)
	assert.Equal(t, 2, cp.Phase)
	assert.Equal(t, tr.RunID(), cp.RunID)
	assert.Equal(t, []string{"A", "B"}, cp.Teams)
	require.Len(t, cp.Rewards, 2)
	assert.Len(t, cp.Rewards[0], 5)

	fresh := approximated(t, 2, 3, 99)
	require.NoError(t, cp.RestorePolicies(fresh))
	state := make([]float64, 6)
	state[0] = 1
	for i := range fresh {
		want := policies[i].(*policy.Approximated).Values(state)
		got := fresh[i].(*policy.Approximated).Values(state)
		assert.InDeltaSlice(t, want, got, 1e-12)
	}
}

func TestResumeContinuesFromCheckpoint(t *testing.T) {
	engine, buf := testEngine(t, approximated(t, 2, 3, 5), 2, 50)
	cfg := twoPhaseConfig()
	cfg.Phases = cfg.Phases[:1]
	tr, err := New(cfg, engine, buf, quartz.NewMock(t), testLogger())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "run.json")
	tr.EnableCheckpoints(path)
	require.NoError(t, tr.Run(context.Background(), nil))

	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)

	full := twoPhaseConfig()
	engine2, buf2 := testEngine(t, approximated(t, 2, 3, 6), 2, 50)
	resumed, err := New(full, engine2, buf2, quartz.NewMock(t), testLogger())
	require.NoError(t, err)
	require.NoError(t, resumed.Resume(cp))
	assert.Equal(t, 3, resumed.Episode())
	assert.Equal(t, cp.RunID, resumed.RunID())
	// Resumed at the phase boundary, so the next phase's schedule applies.
	assert.Equal(t, 1.0, engine2.Teams()[0].Policy.Exploration())

	require.NoError(t, resumed.Run(context.Background(), nil))
	assert.Equal(t, 5, resumed.Episode())
	assert.Len(t, resumed.RewardHistory()[0], 5)
	assert.Len(t, resumed.Evaluations(), 2)
}

func TestCheckpointRejectsUnsnapshottablePolicies(t *testing.T) {
	engine, buf := testEngine(t, []policy.Policy{&countingPolicy{}}, 1, 10)
	tr, err := New(twoPhaseConfig(), engine, buf, quartz.NewMock(t), testLogger())
	require.NoError(t, err)
	assert.Error(t, tr.SaveCheckpoint(filepath.Join(t.TempDir(), "x.json")))
}

func TestLoadCheckpointRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))
	_, err := LoadCheckpoint(path)
	assert.Error(t, err)

	_, err = LoadCheckpoint(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 5000, DefaultConfig().TotalEpisodes())

	cfg := twoPhaseConfig()
	cfg.Phases = nil
	assert.Error(t, cfg.Validate())

	cfg = twoPhaseConfig()
	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = twoPhaseConfig()
	cfg.Phases[1].Episodes = 0
	assert.Error(t, cfg.Validate())

	cfg = twoPhaseConfig()
	cfg.Phases[0].Exploration.Floor = 5
	assert.Error(t, cfg.Validate())

	cfg = twoPhaseConfig()
	cfg.SyncEvery = -1
	assert.Error(t, cfg.Validate())
}
