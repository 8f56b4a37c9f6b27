package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/snakedraft/internal/draft"
)

var cats = draft.Categories{"QB", "RB", "WR", "TE"}

func TestLoadShortHeaders(t *testing.T) {
	src := "name,category,value\nAllen,QB,380.5\nRobinson,RB,290\n\nKelce,TE,170\n"
	items, err := Load(strings.NewReader(src), cats, Options{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, draft.Item{Name: "Allen", Category: 0, Value: 380.5}, items[0])
	assert.Equal(t, 1, items[1].Category)
	assert.Equal(t, 3, items[2].Category)
}

func TestLoadFantasyProsExport(t *testing.T) {
	src := `,Player,Team,POS,Fantasy Points
0,Josh Allen,BUF,QB,390.2
1,"Chase, Ja'Marr",CIN,WR,301
`
	items, err := Load(strings.NewReader(src), cats, Options{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Josh Allen", items[0].Name)
	assert.Equal(t, "Chase, Ja'Marr", items[1].Name)
	assert.Equal(t, 2, items[1].Category)
	assert.InDelta(t, 301.0, items[1].Value, 1e-9)
}

func TestLoadUnknownCategory(t *testing.T) {
	src := "name,category,value\nTucker,K,150\nAllen,QB,380\n"

	_, err := Load(strings.NewReader(src), cats, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown category "K"`)

	items, err := Load(strings.NewReader(src), cats, Options{SkipUnknown: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Allen", items[0].Name)
}

func TestLoadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "empty board"},
		{"no rows", "name,category,value\n", "no items"},
		{"missing value column", "name,category\nAllen,QB\n", "missing column: value"},
		{"bad number", "name,category,value\nAllen,QB,lots\n", "line 2"},
		{"negative", "name,category,value\nAllen,QB,-3\n", "non-negative"},
		{"short row", "name,category,value\nAllen,QB\n", "expected at least 3 fields"},
		{"empty name", "name,category,value\n ,QB,10\n", "empty name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src), cats, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingColumnIsTyped(t *testing.T) {
	_, err := Load(strings.NewReader("player,value\nA,1\n"), cats, Options{})
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,category,value\nAllen,QB,380\n"), 0o644))

	items, err := LoadFile(path, cats, Options{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), cats, Options{})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDebugBoard(t *testing.T) {
	items := DebugBoard()
	require.Len(t, items, 20)

	pool, err := draft.NewPool(items, len(DebugCategories()))
	require.NoError(t, err)
	for c, want := range []float64{360, 280, 210, 140} {
		assert.Equal(t, want, pool.MaxValue(c))
		assert.Len(t, pool.Filter(c), 5)
	}
}

func TestExampleBoard(t *testing.T) {
	items, err := LoadFile(filepath.Join("..", "..", "examples", "board.csv"), cats, Options{})
	require.NoError(t, err)
	assert.Len(t, items, 280)

	pool, err := draft.NewPool(items, len(cats))
	require.NoError(t, err)
	for c := range cats {
		assert.Greater(t, pool.MaxValue(c), 0.0)
	}
}
