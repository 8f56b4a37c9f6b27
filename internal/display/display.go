// Package display renders draft and training results as terminal tables.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"

	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/statistics"
	"github.com/lox/snakedraft/internal/trainer"
)

// Styles contains all styling for rendered tables
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Best    lipgloss.Style
	Penalty lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles matches the training view palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1),
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("#96CEB4")).Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Best:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true).Padding(0, 1),
		Penalty: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Padding(0, 1),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
	}
}

// Renderer turns results into strings.
type Renderer struct {
	styles     Styles
	categories draft.Categories
}

func NewRenderer(categories draft.Categories, styles Styles) *Renderer {
	return &Renderer{styles: styles, categories: categories}
}

func (r *Renderer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.styles.Border).
		Headers(headers...)
}

// Summary renders one row per team. The highest reward is highlighted.
func (r *Renderer) Summary(title string, sum *draft.Summary) string {
	headers := []string{"Team", "Reward", "Points", "Penalties"}
	headers = append(headers, r.categories...)
	headers = append(headers, "Drafted")

	best := -1
	if len(sum.Teams) > 0 {
		_, best = lo.MaxIndexBy(sum.Teams, func(a, b draft.TeamSummary) bool { return a.Reward > b.Reward })
	}

	rows := make([][]string, 0, len(sum.Teams))
	for _, ts := range sum.Teams {
		row := []string{
			ts.Name,
			strconv.FormatFloat(ts.Reward, 'f', 3, 64),
			strconv.FormatFloat(ts.Points, 'f', 1, 64),
			strconv.Itoa(ts.Penalties),
		}
		for c := range r.categories {
			n := 0
			if c < len(ts.Counters) {
				n = ts.Counters[c]
			}
			row = append(row, strconv.Itoa(n))
		}
		row = append(row, strings.Join(ts.Drafted, ", "))
		rows = append(rows, row)
	}

	t := r.newTable(headers...).Rows(rows...).StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return r.styles.Header
		case row == best:
			return r.styles.Best
		default:
			return r.styles.Cell
		}
	})
	return r.titled(title, t.String())
}

// Picks renders the pick log in draft order.
func (r *Renderer) Picks(sum *draft.Summary) string {
	names := lo.Map(sum.Teams, func(ts draft.TeamSummary, _ int) string { return ts.Name })
	rows := make([][]string, 0, len(sum.Picks))
	for _, p := range sum.Picks {
		team := strconv.Itoa(p.Team)
		if p.Team >= 0 && p.Team < len(names) {
			team = names[p.Team]
		}
		pick := p.Name
		if p.Penalized {
			pick = "no " + r.categoryName(p.Action) + " left"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Round + 1),
			team,
			pick,
			strconv.FormatFloat(p.Reward, 'f', 3, 64),
		})
	}
	t := r.newTable("Round", "Team", "Pick", "Reward").Rows(rows...).StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return r.styles.Header
		}
		if row >= 0 && row < len(sum.Picks) && sum.Picks[row].Penalized {
			return r.styles.Penalty
		}
		return r.styles.Cell
	})
	return t.String()
}

// Training renders per-team reward statistics. window sets the trailing
// average shown in the last column.
func (r *Renderer) Training(names []string, stats []*statistics.Statistics, window int) string {
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		name := fmt.Sprintf("Team %d", i+1)
		if i < len(names) {
			name = names[i]
		}
		trailing := 0.0
		if avg := s.MovingAverage(window); len(avg) > 0 {
			trailing = avg[len(avg)-1]
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(s.Episodes),
			strconv.FormatFloat(s.Mean(), 'f', 3, 64),
			strconv.FormatFloat(s.StdDev(), 'f', 3, 64),
			strconv.FormatFloat(s.BestReward, 'f', 3, 64),
			strconv.FormatFloat(s.WorstReward, 'f', 3, 64),
			strconv.FormatFloat(trailing, 'f', 3, 64),
			strconv.Itoa(s.Penalties),
		})
	}
	last := fmt.Sprintf("Last %d", window)
	t := r.newTable("Team", "Episodes", "Mean", "StdDev", "Best", "Worst", last, "Penalties").
		Rows(rows...).
		StyleFunc(r.plain)
	return r.titled("Training", t.String())
}

// Evaluations renders the end-of-phase exploit drafts.
func (r *Renderer) Evaluations(evals []trainer.Evaluation) string {
	rows := lo.Map(evals, func(e trainer.Evaluation, _ int) []string {
		return []string{
			e.Phase,
			strconv.Itoa(e.Episode),
			strconv.FormatFloat(e.Summary.MeanReward(), 'f', 3, 64),
			strconv.FormatFloat(e.Summary.MeanPoints(), 'f', 1, 64),
		}
	})
	t := r.newTable("Phase", "Episode", "Mean reward", "Mean points").Rows(rows...).StyleFunc(r.plain)
	return r.titled("Evaluation drafts", t.String())
}

func (r *Renderer) plain(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return r.styles.Header
	}
	return r.styles.Cell
}

func (r *Renderer) titled(title, body string) string {
	if title == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, r.styles.Title.Render(title), body)
}

func (r *Renderer) categoryName(c int) string {
	if c >= 0 && c < len(r.categories) {
		return r.categories[c]
	}
	return strconv.Itoa(c)
}
