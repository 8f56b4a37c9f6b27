package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lox/snakedraft/internal/trainer"
)

const dotsPerPhase = 40

// SimpleProgressMonitor prints one line of dots per phase, closed by the
// phase's evaluation result.
type SimpleProgressMonitor struct {
	mu         sync.Mutex
	out        io.Writer
	phases     []trainer.Phase
	phase      int
	open       bool
	dots       int
	startTime  time.Time
	phaseStart time.Time
	episodes   int
}

// NewSimpleProgressMonitor creates a monitor for the given phases.
func NewSimpleProgressMonitor(out io.Writer, phases []trainer.Phase) *SimpleProgressMonitor {
	return &SimpleProgressMonitor{
		out:       out,
		phases:    phases,
		phase:     -1,
		startTime: time.Now(),
	}
}

// OnProgress is passed to the trainer as its progress callback.
func (m *SimpleProgressMonitor) OnProgress(p trainer.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.episodes = p.Episode
	if !m.open || p.Phase != m.phase {
		m.phase = p.Phase
		m.open = true
		m.dots = 0
		m.phaseStart = time.Now()
		fmt.Fprintf(m.out, "Phase %d/%d %-8s ", p.Phase+1, len(m.phases), p.PhaseName)
	}

	target := dotsPerPhase
	if !p.PhaseDone && p.Phase < len(m.phases) && m.phases[p.Phase].Episodes > 0 {
		target = min(p.PhaseEpisode*dotsPerPhase/m.phases[p.Phase].Episodes, dotsPerPhase)
	}
	for ; m.dots < target; m.dots++ {
		fmt.Fprint(m.out, ".")
	}

	if p.PhaseDone {
		duration := time.Since(m.phaseStart)
		fmt.Fprintf(m.out, " ✓ %.1fs", duration.Seconds())
		if p.Evaluation != nil {
			fmt.Fprintf(m.out, "  eval reward %.3f  points %.1f", p.Evaluation.MeanReward(), p.Evaluation.MeanPoints())
		}
		fmt.Fprintln(m.out)
		m.open = false
	}
}

// Finish prints the final summary line.
func (m *SimpleProgressMonitor) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open {
		fmt.Fprintln(m.out)
		m.open = false
	}
	duration := time.Since(m.startTime)
	rate := 0.0
	if duration > 0 {
		rate = float64(m.episodes) / duration.Seconds()
	}
	fmt.Fprintf(m.out, "\n✅ Completed %d episodes in %.1fs (%.0f episodes/sec)\n\n",
		m.episodes, duration.Seconds(), rate)
}
