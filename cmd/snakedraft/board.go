package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/simulator"
)

// BoardCmd prints the board a configuration resolves to
type BoardCmd struct {
	ConfigFlags

	Top int `default:"10" help:"Items to show per category"`
}

func (c *BoardCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	items, err := simulator.LoadItems(cfg)
	if err != nil {
		return err
	}
	categories := cfg.CategoryNames()
	pool, err := draft.NewPool(items, len(categories))
	if err != nil {
		return err
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	for ci, name := range categories {
		var rows [][]string
		for i, it := range pool.Filter(ci) {
			if i >= c.Top {
				break
			}
			rows = append(rows, []string{strconv.Itoa(i + 1), it.Name, strconv.FormatFloat(it.Value, 'f', 1, 64)})
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("#", name, "Value").
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
		fmt.Printf("%s  limit %d, %d items, best %.1f\n%s\n",
			name, cfg.Categories[ci].Limit, len(pool.Filter(ci)), pool.MaxValue(ci), t.String())
	}
	return nil
}
