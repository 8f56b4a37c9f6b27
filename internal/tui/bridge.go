package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/snakedraft/internal/trainer"
)

// TrainFunc runs training, reporting through progress.
type TrainFunc func(ctx context.Context, progress func(trainer.Progress)) error

// Bridge forwards trainer callbacks into a running program.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge creates a bridge that delivers messages with send, usually a
// program's Send method.
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

// Progress forwards one trainer update.
func (b *Bridge) Progress(p trainer.Progress) {
	b.send(ProgressMsg(p))
}

// Done reports that training returned err.
func (b *Bridge) Done(err error) {
	b.send(DoneMsg{Err: err})
}

// Run shows the training view while train runs in the background. Quitting
// the view cancels training.
func Run(ctx context.Context, logger *log.Logger, train TrainFunc, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(logger, cancel)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	bridge := NewBridge(program.Send)

	errCh := make(chan error, 1)
	go func() {
		err := train(ctx, bridge.Progress)
		bridge.Done(err)
		errCh <- err
	}()

	_, runErr := program.Run()
	cancel()
	trainErr := <-errCh
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return trainErr
}
