// Package tui renders a live view of a training run.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/lox/snakedraft/internal/trainer"
)

// ProgressMsg carries one trainer update into the program.
type ProgressMsg trainer.Progress

// DoneMsg reports that training returned.
type DoneMsg struct {
	Err error
}

const historyLimit = 60

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Model is the Bubble Tea model for the training view
type Model struct {
	logger *log.Logger
	cancel context.CancelFunc

	// UI components
	bar     progress.Model
	logView viewport.Model

	// State
	latest   trainer.Progress
	seen     bool
	rewards  []float64
	entries  []string
	done     bool
	err      error
	quitting bool

	// Dimensions
	width  int
	height int

	// Test mode
	testMode    bool
	capturedLog []string
}

// NewModel creates a training view. cancel is called when the user quits.
func NewModel(logger *log.Logger, cancel context.CancelFunc) *Model {
	return NewModelWithOptions(logger, cancel, false)
}

// NewModelWithOptions creates a training view with the test mode option
func NewModelWithOptions(logger *log.Logger, cancel context.CancelFunc, testMode bool) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")
	return &Model{
		logger:   logger.WithPrefix("tui"),
		cancel:   cancel,
		bar:      progress.New(progress.WithDefaultGradient()),
		logView:  vp,
		testMode: testMode,
	}
}

func (m *Model) Init() tea.Cmd { return nil }

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, 10)
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		}

	case ProgressMsg:
		m.observe(trainer.Progress(msg))

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Err != nil {
			m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("Training stopped: %v", msg.Err)))
		} else {
			m.AddLogEntry(SuccessStyle.Render(fmt.Sprintf("Training complete after %d episodes", m.latest.Episode)))
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m *Model) observe(p trainer.Progress) {
	phaseChanged := !m.seen || p.Phase != m.latest.Phase
	m.latest = p
	m.seen = true
	if phaseChanged && !p.PhaseDone {
		m.AddLogEntry(PhaseStyle.Render(fmt.Sprintf("Phase %s", p.PhaseName)))
	}
	if p.PhaseDone {
		if p.Evaluation != nil {
			m.AddLogEntry(fmt.Sprintf("%s done at episode %d: eval reward %.3f, points %.1f",
				p.PhaseName, p.Episode, p.Evaluation.MeanReward(), p.Evaluation.MeanPoints()))
		} else {
			m.AddLogEntry(fmt.Sprintf("%s done at episode %d", p.PhaseName, p.Episode))
		}
		return
	}
	m.rewards = append(m.rewards, p.MeanReward)
	if len(m.rewards) > historyLimit {
		m.rewards = m.rewards[len(m.rewards)-historyLimit:]
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render("snakedraft training")
	status := m.renderStatus()
	statusHeight := lipgloss.Height(header) + lipgloss.Height(status) + 2

	logHeight := max(m.height-statusHeight-3, 1)
	m.logView.Width = max(m.width-2, 1)
	m.logView.Height = logHeight
	logPane := paneStyle.Width(m.logView.Width).Height(logHeight).Render(m.logView.View())

	help := InfoStyle.Render("q to stop training")
	return lipgloss.JoinVertical(lipgloss.Left, header, status, logPane, help)
}

func (m *Model) renderStatus() string {
	if !m.seen {
		return InfoStyle.Render("Waiting for the first episode...")
	}
	p := m.latest
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", PhaseStyle.Render(fmt.Sprintf("Phase %d: %s", p.Phase+1, p.PhaseName)),
		MetricStyle.Render(fmt.Sprintf("episode %d/%d", p.Episode, p.TotalEpisodes)))
	b.WriteString(m.bar.ViewAs(m.fraction()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s  %s\n",
		RewardStyle.Render(fmt.Sprintf("reward %.3f", p.MeanReward)),
		MetricStyle.Render(fmt.Sprintf("exploration %.3f", lo.Mean(p.Exploration))),
		MetricStyle.Render(fmt.Sprintf("buffer %d", p.BufferLen)))
	fmt.Fprintf(&b, "%s  %s", Sparkline(m.rewards), InfoStyle.Render(p.Elapsed.Truncate(time.Second).String()))
	return b.String()
}

func (m *Model) fraction() float64 {
	if m.latest.TotalEpisodes == 0 {
		return 0
	}
	return min(float64(m.latest.Episode)/float64(m.latest.TotalEpisodes), 1)
}

// Sparkline renders values as a row of block characters scaled between
// their minimum and maximum.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	low, high := lo.Min(values), lo.Max(values)
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if high > low {
			idx = int((v - low) / (high - low) * float64(len(sparkBlocks)-1))
		}
		out[i] = sparkBlocks[idx]
	}
	return string(out)
}

// AddLogEntry appends a line to the log pane
func (m *Model) AddLogEntry(entry string) {
	m.entries = append(m.entries, entry)
	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
	}
	m.logView.SetContent(strings.Join(m.entries, "\n"))
	m.logView.GotoBottom()
}

// Err is the error training finished with, if any.
func (m *Model) Err() error { return m.err }

// Done reports whether training has returned.
func (m *Model) Done() bool { return m.done }

// IsTestMode returns whether the model is in test mode
func (m *Model) IsTestMode() bool { return m.testMode }

// GetCapturedLog returns captured log entries (test mode only)
func (m *Model) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	return append([]string(nil), m.capturedLog...)
}
