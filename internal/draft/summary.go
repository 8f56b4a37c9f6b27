package draft

import (
	"slices"

	"github.com/samber/lo"
)

// TeamSummary is one team's result for an episode.
type TeamSummary struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Drafted   []string `json:"drafted"`
	ItemIDs   []int    `json:"item_ids"`
	Reward    float64  `json:"reward"`
	Points    float64  `json:"points"`
	Counters  []int    `json:"counters"`
	Penalties int      `json:"penalties"`
}

// Summary is the outcome of a completed episode.
type Summary struct {
	Rounds int           `json:"rounds"`
	Teams  []TeamSummary `json:"teams"`
	Picks  []Pick        `json:"picks"`
}

// Summary snapshots the teams and pick log. Calling it mid-episode returns
// the state so far.
func (e *Engine) Summary() *Summary {
	s := &Summary{
		Rounds: e.round,
		Picks:  slices.Clone(e.picks),
	}
	for _, t := range e.teams {
		s.Teams = append(s.Teams, TeamSummary{
			ID:   t.ID,
			Name: t.Name,
			Drafted: lo.Map(t.Drafted, func(id int, _ int) string {
				it, _ := e.pool.Get(id)
				return it.Name
			}),
			ItemIDs:   slices.Clone(t.Drafted),
			Reward:    t.Reward,
			Points:    t.Points,
			Counters:  slices.Clone(t.Counters),
			Penalties: t.Penalties,
		})
	}
	return s
}

// MeanReward averages the accumulated reward over teams.
func (s *Summary) MeanReward() float64 {
	if len(s.Teams) == 0 {
		return 0
	}
	return lo.SumBy(s.Teams, func(t TeamSummary) float64 { return t.Reward }) / float64(len(s.Teams))
}

// MeanPoints averages the drafted value over teams.
func (s *Summary) MeanPoints() float64 {
	if len(s.Teams) == 0 {
		return 0
	}
	return lo.SumBy(s.Teams, func(t TeamSummary) float64 { return t.Points }) / float64(len(s.Teams))
}
