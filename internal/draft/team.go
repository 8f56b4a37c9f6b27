package draft

import (
	"github.com/lox/snakedraft/internal/policy"
)

// Team is one drafting participant. Everything except Policy is episode
// state and is cleared by Reset.
type Team struct {
	ID        int
	Name      string
	Counters  []int
	Drafted   []int
	Reward    float64
	Points    float64
	Penalties int
	Policy    policy.Policy
}

func NewTeam(id int, name string, categories int, p policy.Policy) *Team {
	return &Team{
		ID:       id,
		Name:     name,
		Counters: make([]int, categories),
		Policy:   p,
	}
}

// Reset clears the episode state. The policy's learned parameters and
// exploration state are untouched.
func (t *Team) Reset() {
	clear(t.Counters)
	t.Drafted = t.Drafted[:0]
	t.Reward = 0
	t.Points = 0
	t.Penalties = 0
}

// Picks is the number of successful picks this episode.
func (t *Team) Picks() int { return len(t.Drafted) }

// EncodeState builds the observation for teams[self]: its own counters
// followed by every other team's counters in team order.
func EncodeState(teams []*Team, self int) []float64 {
	if len(teams) == 0 {
		return nil
	}
	width := len(teams[self].Counters)
	state := make([]float64, 0, width*len(teams))
	state = appendCounters(state, teams[self].Counters)
	for i, t := range teams {
		if i != self {
			state = appendCounters(state, t.Counters)
		}
	}
	return state
}

func appendCounters(dst []float64, counters []int) []float64 {
	for _, n := range counters {
		dst = append(dst, float64(n))
	}
	return dst
}
