package tui

import (
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/trainer"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func progressAt(phase int, name string, episode int) ProgressMsg {
	return ProgressMsg(trainer.Progress{
		Phase:         phase,
		PhaseName:     name,
		Episode:       episode,
		TotalEpisodes: 10,
		MeanReward:    float64(episode) / 10,
		Exploration:   []float64{1, 0.5},
		BufferLen:     episode * 4,
		Elapsed:       time.Duration(episode) * time.Second,
	})
}

func TestModelTracksProgress(t *testing.T) {
	m := NewModelWithOptions(quietLogger(), nil, true)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.Contains(t, m.View(), "Waiting for the first episode")

	m.Update(progressAt(0, "explore", 1))
	m.Update(progressAt(0, "explore", 2))

	eval := progressAt(0, "explore", 5)
	eval.PhaseDone = true
	eval.Evaluation = &draft.Summary{Teams: []draft.TeamSummary{{Reward: 2, Points: 300}, {Reward: 1, Points: 200}}}
	m.Update(eval)
	m.Update(progressAt(1, "exploit", 6))

	captured := m.GetCapturedLog()
	require.Len(t, captured, 3)
	assert.Contains(t, captured[0], "Phase explore")
	assert.Contains(t, captured[1], "explore done at episode 5: eval reward 1.500, points 250.0")
	assert.Contains(t, captured[2], "Phase exploit")

	view := m.View()
	assert.Contains(t, view, "Phase 2: exploit")
	assert.Contains(t, view, "episode 6/10")
	assert.Contains(t, view, "exploration 0.750")
	assert.Contains(t, view, "buffer 24")
	assert.InDelta(t, 0.6, m.fraction(), 1e-9)
}

func TestModelDone(t *testing.T) {
	m := NewModelWithOptions(quietLogger(), nil, true)
	m.Update(progressAt(0, "explore", 3))

	_, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	assert.True(t, m.Done())
	assert.NoError(t, m.Err())
	assert.Contains(t, m.GetCapturedLog()[1], "Training complete after 3 episodes")

	failed := NewModelWithOptions(quietLogger(), nil, true)
	boom := errors.New("boom")
	failed.Update(DoneMsg{Err: boom})
	assert.ErrorIs(t, failed.Err(), boom)
	assert.Contains(t, failed.GetCapturedLog()[0], "Training stopped: boom")
}

func TestQuitCancelsTraining(t *testing.T) {
	cancelled := false
	m := NewModelWithOptions(quietLogger(), func() { cancelled = true }, false)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, cancelled)
	assert.Empty(t, m.View())
	assert.Nil(t, m.GetCapturedLog())
}

func TestBridgeForwardsMessages(t *testing.T) {
	var got []tea.Msg
	b := NewBridge(func(msg tea.Msg) { got = append(got, msg) })

	b.Progress(trainer.Progress{Episode: 4})
	b.Done(nil)

	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].(ProgressMsg).Episode)
	assert.Equal(t, DoneMsg{}, got[1])
}

func TestSparkline(t *testing.T) {
	assert.Empty(t, Sparkline(nil))
	assert.Equal(t, "▁▁", Sparkline([]float64{3, 3}))
	assert.Equal(t, "▁▄█", Sparkline([]float64{0, 0.5, 1}))
}
