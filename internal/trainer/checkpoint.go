package trainer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lox/snakedraft/internal/fileutil"
	"github.com/lox/snakedraft/internal/policy"
	"github.com/lox/snakedraft/internal/statistics"
)

const checkpointFileVersion = 1

// Checkpoint is the persisted state of a training run: where it stopped, the
// per-team histories and every team's learned policy.
type Checkpoint struct {
	Version      int               `json:"version"`
	RunID        uuid.UUID         `json:"run_id"`
	SavedAt      time.Time         `json:"saved_at"`
	Episode      int               `json:"episode"`
	Phase        int               `json:"phase"`
	PhaseEpisode int               `json:"phase_episode"`
	Training     Config            `json:"training"`
	Teams        []string          `json:"teams"`
	Policies     []policy.Snapshot `json:"policies"`
	Rewards      [][]float64       `json:"rewards"`
	Exploration  [][]float64       `json:"exploration"`
	Evaluations  []Evaluation      `json:"evaluations,omitempty"`
}

// SaveCheckpoint writes a snapshot of the trainer state to path. The file is
// replaced atomically.
func (t *Trainer) SaveCheckpoint(path string) error {
	snap, err := t.buildCheckpoint()
	if err != nil {
		return err
	}
	return writeCheckpoint(path, snap)
}

func writeCheckpoint(path string, snap *Checkpoint) error {
	if err := fileutil.WriteJSONAtomic(path, snap, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

func (t *Trainer) buildCheckpoint() (*Checkpoint, error) {
	teams := t.engine.Teams()
	snap := &Checkpoint{
		Version:      checkpointFileVersion,
		RunID:        t.runID,
		SavedAt:      t.clock.Now().UTC(),
		Episode:      t.episode,
		Phase:        t.phase,
		PhaseEpisode: t.phaseEpisode,
		Training:     t.cfg,
		Rewards:      t.RewardHistory(),
		Exploration:  t.ExplorationHistory(),
		Evaluations:  t.evaluations,
	}
	for _, team := range teams {
		s, ok := team.Policy.(policy.Snapshotter)
		if !ok {
			return nil, fmt.Errorf("team %s: %s policy cannot be checkpointed", team.Name, team.Policy.Kind())
		}
		ps, err := s.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot team %s: %w", team.Name, err)
		}
		snap.Teams = append(snap.Teams, team.Name)
		snap.Policies = append(snap.Policies, ps)
	}
	return snap, nil
}

// LoadCheckpoint reads and validates a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeCheckpoint(f)
}

func decodeCheckpoint(r io.Reader) (*Checkpoint, error) {
	var snap Checkpoint
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != checkpointFileVersion {
		return nil, errors.New("unsupported checkpoint version")
	}
	if err := snap.Training.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint training invalid: %w", err)
	}
	if len(snap.Policies) != len(snap.Teams) {
		return nil, fmt.Errorf("checkpoint has %d policies for %d teams", len(snap.Policies), len(snap.Teams))
	}
	return &snap, nil
}

// RestorePolicies loads the checkpointed policies into policies, in team
// order.
func (c *Checkpoint) RestorePolicies(policies []policy.Policy) error {
	if len(policies) != len(c.Policies) {
		return fmt.Errorf("checkpoint has %d policies, got %d teams", len(c.Policies), len(policies))
	}
	for i, p := range policies {
		s, ok := p.(policy.Snapshotter)
		if !ok {
			return fmt.Errorf("team %d: %s policy cannot be restored", i, p.Kind())
		}
		if err := s.Restore(c.Policies[i]); err != nil {
			return fmt.Errorf("restore team %d: %w", i, err)
		}
	}
	return nil
}

// Resume restores policies, histories and the run position from cp so a
// subsequent Run continues where the checkpoint stopped.
func (t *Trainer) Resume(cp *Checkpoint) error {
	if cp.Phase > len(t.cfg.Phases) {
		return fmt.Errorf("checkpoint phase %d beyond configured %d phases", cp.Phase, len(t.cfg.Phases))
	}
	teams := t.engine.Teams()
	// Mid-phase the restored exploration state must win over the phase
	// settings; at a phase boundary the next phase starts fresh.
	midPhase := cp.Phase < len(t.cfg.Phases) && cp.PhaseEpisode > 0
	if midPhase {
		t.configure(t.cfg.Phases[cp.Phase])
	}
	policies := make([]policy.Policy, len(teams))
	for i, team := range teams {
		policies[i] = team.Policy
	}
	if err := cp.RestorePolicies(policies); err != nil {
		return err
	}
	if !midPhase && cp.Phase < len(t.cfg.Phases) {
		t.configure(t.cfg.Phases[cp.Phase])
	}

	t.runID = cp.RunID
	t.episode = cp.Episode
	t.phase = cp.Phase
	t.phaseEpisode = cp.PhaseEpisode
	t.evaluations = cp.Evaluations
	for i := range teams {
		*t.stats[i] = statistics.Statistics{}
		if i < len(cp.Rewards) {
			for _, r := range cp.Rewards[i] {
				t.stats[i].Add(statistics.EpisodeResult{Reward: r})
			}
		}
		t.exploration[i] = nil
		if i < len(cp.Exploration) {
			t.exploration[i] = append(t.exploration[i], cp.Exploration[i]...)
		}
	}
	t.lastCheckpoint = t.clock.Now()
	return nil
}
