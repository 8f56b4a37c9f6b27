// Package dataset loads draft boards from CSV.
//
// A board needs three columns: a name, a category and a projected value.
// Either the short headers (name, category, value) or the FantasyPros export
// headers (Player, POS, Fantasy Points) are accepted; other columns, such as
// an unnamed index, are ignored.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/lox/snakedraft/internal/draft"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

var columnAliases = map[string][]string{
	"name":     {"name", "player", "player_name"},
	"category": {"category", "pos", "position"},
	"value":    {"value", "fantasy points", "projected_points", "points"},
}

// Options tunes how rows are accepted.
type Options struct {
	// SkipUnknown drops rows whose category is not configured instead of
	// failing the load.
	SkipUnknown bool
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string, categories draft.Categories, opts Options) ([]draft.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	items, err := Load(f, categories, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Load reads a board. Item IDs are assigned later by draft.NewPool.
func Load(r io.Reader, categories draft.Categories, opts Options) ([]draft.Item, error) {
	if err := categories.Validate(); err != nil {
		return nil, err
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty board")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var items []draft.Item
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		item, ok, err := parseRow(record, cols, categories, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, errors.New("board has no items")
	}
	return items, nil
}

type columns struct {
	name, category, value int
}

func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	find := func(field string) (int, error) {
		for _, alias := range columnAliases[field] {
			if i, ok := index[alias]; ok {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, field)
	}

	var cols columns
	var err error
	if cols.name, err = find("name"); err != nil {
		return cols, err
	}
	if cols.category, err = find("category"); err != nil {
		return cols, err
	}
	if cols.value, err = find("value"); err != nil {
		return cols, err
	}
	return cols, nil
}

func parseRow(record []string, cols columns, categories draft.Categories, opts Options) (draft.Item, bool, error) {
	need := max(cols.name, cols.category, cols.value)
	if len(record) <= need {
		return draft.Item{}, false, fmt.Errorf("expected at least %d fields, got %d", need+1, len(record))
	}
	name := strings.TrimSpace(record[cols.name])
	if name == "" {
		return draft.Item{}, false, errors.New("empty name")
	}
	catName := strings.TrimSpace(record[cols.category])
	cat, ok := categories.Index(catName)
	if !ok {
		if opts.SkipUnknown {
			return draft.Item{}, false, nil
		}
		return draft.Item{}, false, fmt.Errorf("unknown category %q for %s", catName, name)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(record[cols.value]), 64)
	if err != nil {
		return draft.Item{}, false, fmt.Errorf("value for %s: %w", name, err)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return draft.Item{}, false, fmt.Errorf("value for %s must be finite and non-negative", name)
	}
	return draft.Item{Name: name, Category: cat, Value: value}, true, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// DebugCategories are the categories used by DebugBoard.
func DebugCategories() draft.Categories {
	return draft.Categories{"QB", "RB", "WR", "TE"}
}

// DebugBoard is a small twenty item board, five per category, useful for
// quick runs and tests.
func DebugBoard() []draft.Item {
	values := [][]float64{
		{360, 330, 300, 270, 240},
		{280, 220, 180, 150, 120},
		{210, 170, 150, 140, 120},
		{140, 110, 80, 70, 60},
	}
	cats := DebugCategories()
	items := make([]draft.Item, 0, 20)
	for c, row := range values {
		for i, v := range row {
			items = append(items, draft.Item{
				Name:     fmt.Sprintf("%s%d", cats[c], i+1),
				Category: c,
				Value:    v,
			})
		}
	}
	return items
}
