package draft

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/samber/lo/mutable"

	"github.com/lox/snakedraft/internal/policy"
	"github.com/lox/snakedraft/internal/replay"
)

// Mode selects how actions are interpreted and how limits are enforced.
type Mode int

const (
	// ModeSoftLimit: actions are category indices. Over-drafting is allowed
	// and punished by the reward model; an empty category costs the turn.
	ModeSoftLimit Mode = iota
	// ModeHardCap: actions are item IDs restricted to categories under their
	// limit. A team with no such item aborts the episode.
	ModeHardCap
)

func (m Mode) String() string {
	switch m {
	case ModeSoftLimit:
		return "soft-limit"
	case ModeHardCap:
		return "hard-cap"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "soft-limit", "soft_limit", "soft":
		return ModeSoftLimit, nil
	case "hard-cap", "hard_cap", "hard":
		return ModeHardCap, nil
	default:
		return 0, fmt.Errorf("unknown draft mode %q", s)
	}
}

// Status is the engine lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusDrafting
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusDrafting:
		return "drafting"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Config fixes the shape of every episode an engine runs.
type Config struct {
	Rounds int
	Limits []int
	Mode   Mode
	// OnlineUpdates feeds each hard-cap transition straight back into the
	// acting team's policy in addition to the buffered batch updates.
	OnlineUpdates bool
}

// Pick is one entry of the episode log. Item is -1 for a penalised turn.
type Pick struct {
	Round     int     `json:"round"`
	Team      int     `json:"team"`
	Action    int     `json:"action"`
	Item      int     `json:"item"`
	Name      string  `json:"name,omitempty"`
	Reward    float64 `json:"reward"`
	Penalized bool    `json:"penalized,omitempty"`
}

// Engine runs snake-draft episodes. It is single threaded: one team acts at
// a time and only the engine mutates the pool and team counters.
type Engine struct {
	cfg    Config
	pool   *Pool
	reward *RewardModel
	teams  []*Team
	buffer *replay.Buffer
	logger *log.Logger

	status Status
	order  []int
	round  int
	turn   int
	picks  []Pick
}

// NewEngine validates the configuration against the pool and teams.
func NewEngine(cfg Config, pool *Pool, teams []*Team, buffer *replay.Buffer, logger *log.Logger) (*Engine, error) {
	if pool == nil {
		return nil, errors.New("engine requires a pool")
	}
	if len(teams) == 0 {
		return nil, errors.New("engine requires at least one team")
	}
	if cfg.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be > 0, got %d", cfg.Rounds)
	}
	if cfg.Mode != ModeSoftLimit && cfg.Mode != ModeHardCap {
		return nil, fmt.Errorf("unsupported mode %v", cfg.Mode)
	}
	for i, t := range teams {
		if t.Policy == nil {
			return nil, fmt.Errorf("team %d has no policy", i)
		}
		if len(t.Counters) != pool.Categories() {
			return nil, fmt.Errorf("team %d tracks %d categories, pool has %d", i, len(t.Counters), pool.Categories())
		}
	}
	reward, err := NewRewardModel(pool, cfg.Limits)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:    cfg,
		pool:   pool,
		reward: reward,
		teams:  teams,
		buffer: buffer,
		logger: logger.WithPrefix("draft"),
	}, nil
}

// StartEpisode restores the pool, clears every team and resets the order.
func (e *Engine) StartEpisode() {
	e.pool.Reset()
	for _, t := range e.teams {
		t.Reset()
	}
	e.order = lo.Range(len(e.teams))
	e.round = 0
	e.turn = 0
	e.picks = e.picks[:0]
	e.status = StatusDrafting
}

// PlayTurn lets the next team in the order act. A recoverable *Error means
// the turn was penalised and the episode goes on; a fatal one ends it.
func (e *Engine) PlayTurn(explore bool) (Pick, error) {
	if e.status != StatusDrafting {
		return Pick{}, ErrNotDrafting
	}
	idx := e.order[e.turn]
	team := e.teams[idx]

	var (
		pick Pick
		err  error
	)
	switch e.cfg.Mode {
	case ModeHardCap:
		pick, err = e.playCapped(idx, explore)
	default:
		pick, err = e.playCategory(idx, explore)
	}
	if err != nil && IsFatal(err) {
		e.status = StatusIdle
		return pick, err
	}

	e.picks = append(e.picks, pick)
	e.logger.Debug("pick", "round", e.round, "team", team.Name, "item", pick.Name, "reward", pick.Reward, "penalized", pick.Penalized)
	e.advance()
	return pick, err
}

func (e *Engine) playCategory(idx int, explore bool) (Pick, error) {
	team := e.teams[idx]
	state := EncodeState(e.teams, idx)
	categories := lo.Range(e.pool.Categories())
	action, err := team.Policy.ChooseAction(policy.Observation{
		State: state,
		Legal: categories,
	}, explore)
	if err != nil {
		return Pick{}, e.fail(Fatal, idx, err)
	}
	if action < 0 || action >= e.pool.Categories() {
		return Pick{}, e.fail(Fatal, idx, fmt.Errorf("category %d out of range", action))
	}

	item, ok := e.pool.Best(action)
	if !ok {
		team.Reward += InvalidActionPenalty
		team.Penalties++
		e.record(replay.Experience{
			Team:      idx,
			State:     state,
			Action:    action,
			Reward:    InvalidActionPenalty,
			NextState: slices.Clone(state),
			NextLegal: categories,
		})
		pick := Pick{Round: e.round, Team: idx, Action: action, Item: -1, Reward: InvalidActionPenalty, Penalized: true}
		return pick, e.fail(Recoverable, idx, fmt.Errorf("%w: category %d", ErrInvalidAction, action))
	}

	reward, err := e.take(team, item)
	if err != nil {
		return Pick{}, e.fail(Fatal, idx, err)
	}
	e.record(replay.Experience{
		Team:      idx,
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: EncodeState(e.teams, idx),
		NextLegal: categories,
	})
	return Pick{Round: e.round, Team: idx, Action: action, Item: item.ID, Name: item.Name, Reward: reward}, nil
}

func (e *Engine) playCapped(idx int, explore bool) (Pick, error) {
	team := e.teams[idx]
	state := EncodeState(e.teams, idx)
	legal := e.LegalItems(idx)
	if len(legal) == 0 {
		return Pick{}, e.fail(Fatal, idx, ErrNoLegalActions)
	}
	action, err := team.Policy.ChooseAction(policy.Observation{State: state, Legal: legal}, explore)
	if err != nil {
		return Pick{}, e.fail(Fatal, idx, err)
	}
	if !slices.Contains(legal, action) {
		return Pick{}, e.fail(Fatal, idx, fmt.Errorf("item %d is not a legal pick", action))
	}

	item, _ := e.pool.Get(action)
	reward, err := e.take(team, item)
	if err != nil {
		return Pick{}, e.fail(Fatal, idx, err)
	}
	exp := replay.Experience{
		Team:      idx,
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: EncodeState(e.teams, idx),
		NextLegal: e.LegalItems(idx),
	}
	e.record(exp)
	if e.cfg.OnlineUpdates {
		if err := team.Policy.Update([]replay.Experience{exp}); err != nil {
			return Pick{}, e.fail(Fatal, idx, fmt.Errorf("online update: %w", err))
		}
	}
	return Pick{Round: e.round, Team: idx, Action: action, Item: item.ID, Name: item.Name, Reward: reward}, nil
}

// take moves item from the pool to team and scores it.
func (e *Engine) take(team *Team, item Item) (float64, error) {
	if err := e.pool.Remove(item.ID); err != nil {
		return 0, err
	}
	team.Drafted = append(team.Drafted, item.ID)
	team.Counters[item.Category]++
	team.Points += item.Value
	reward := e.reward.Reward(item, team.Counters)
	team.Reward += reward
	return reward, nil
}

// record stores a transition. Episodes end on round exhaustion, so no
// transition is ever marked terminal.
func (e *Engine) record(exp replay.Experience) {
	if e.buffer != nil {
		e.buffer.Add(exp)
	}
}

func (e *Engine) fail(sev Severity, team int, err error) error {
	return &Error{Severity: sev, Team: team, Round: e.round, Err: err}
}

func (e *Engine) advance() {
	e.turn++
	if e.turn < len(e.order) {
		return
	}
	e.turn = 0
	e.round++
	mutable.Reverse(e.order)
	if e.round >= e.cfg.Rounds {
		e.status = StatusComplete
	}
}

// LegalItems lists the available items team idx may take under hard caps, in
// value order.
func (e *Engine) LegalItems(idx int) []int {
	counters := e.teams[idx].Counters
	return lo.Filter(e.pool.Available(), func(id int, _ int) bool {
		it, _ := e.pool.Get(id)
		return counters[it.Category] < e.reward.Limit(it.Category)
	})
}

// Run plays a full episode. Recoverable errors are absorbed; the first fatal
// error aborts the episode and is returned.
func (e *Engine) Run(ctx context.Context, explore bool) (*Summary, error) {
	e.StartEpisode()
	for e.status == StatusDrafting {
		if e.turn == 0 {
			if err := ctx.Err(); err != nil {
				e.status = StatusIdle
				return nil, err
			}
		}
		if _, err := e.PlayTurn(explore); err != nil && IsFatal(err) {
			return nil, err
		}
	}
	return e.Summary(), nil
}

// Order returns a copy of the current draft order.
func (e *Engine) Order() []int { return slices.Clone(e.order) }

func (e *Engine) Round() int { return e.round }

func (e *Engine) Status() Status { return e.status }

func (e *Engine) Mode() Mode { return e.cfg.Mode }

func (e *Engine) Teams() []*Team { return e.teams }

func (e *Engine) Pool() *Pool { return e.pool }

// Picks returns the pick log of the current or last episode.
func (e *Engine) Picks() []Pick { return slices.Clone(e.picks) }
