package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/lox/snakedraft/cmd/snakedraft/shared"
	"github.com/lox/snakedraft/internal/display"
	"github.com/lox/snakedraft/internal/draft"
	"github.com/lox/snakedraft/internal/simulator"
	"github.com/lox/snakedraft/internal/trainer"
	"github.com/lox/snakedraft/internal/tui"
)

// TrainCmd runs the configured training phases
type TrainCmd struct {
	ConfigFlags

	Checkpoint string `help:"Checkpoint path, overrides training.checkpoint"`
	Resume     string `help:"Resume training from a checkpoint file"`
	TUI        bool   `help:"Show the interactive training view"`
	LogFile    string `help:"Write logs here while the training view is open"`
	Window     int    `default:"100" help:"Trailing window for the reward summary"`
	CPUProfile string `help:"Write a CPU profile to file"`
}

func (c *TrainCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if c.Checkpoint != "" {
		cfg.Training.Checkpoint = c.Checkpoint
	}
	logger := shared.SetupLogger(c.Debug, cfg.League.LogLevel)

	if c.CPUProfile != "" {
		f, err := os.Create(c.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		logger.Info("CPU profiling enabled", "path", c.CPUProfile)
	}

	ctx, cancel := shared.SetupSignalHandlerWithLogger(logger)
	defer cancel()

	session, err := simulator.New(cfg, simulator.Options{Logger: logger})
	if err != nil {
		return err
	}
	if c.Resume != "" {
		if err := session.Resume(c.Resume); err != nil {
			return err
		}
	}

	tc := session.Trainer().Config()
	logger.Info("Starting training",
		"teams", cfg.League.Teams,
		"rounds", cfg.League.Rounds,
		"mode", cfg.League.Mode,
		"policy", cfg.Policy.Kind,
		"episodes", tc.TotalEpisodes(),
		"seed", tc.Seed,
		"run", session.Trainer().RunID())

	var result *simulator.Result
	train := func(ctx context.Context, progress func(trainer.Progress)) error {
		res, err := session.Train(ctx, progress)
		result = res
		return err
	}

	if c.TUI {
		closeLog, err := redirectLogs(logger, c.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()
		err = tui.Run(ctx, logger, train)
		if err != nil {
			return err
		}
	} else {
		monitor := NewSimpleProgressMonitor(os.Stdout, tc.Phases)
		err := train(ctx, monitor.OnProgress)
		monitor.Finish()
		if err != nil {
			return err
		}
	}

	renderResult(os.Stdout, session, result, c.Window)
	if cfg.Training.Checkpoint != "" {
		logger.Info("Checkpoint written", "path", cfg.Training.Checkpoint)
	}
	return nil
}

// The alt screen owns the terminal, so logs go to a file or nowhere.
func redirectLogs(logger *log.Logger, path string) (func(), error) {
	if path == "" {
		logger.SetOutput(io.Discard)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return func() { f.Close() }, nil
}

func renderResult(w io.Writer, session *simulator.Session, res *simulator.Result, window int) {
	if res == nil {
		return
	}
	r := display.NewRenderer(session.Categories(), display.DefaultStyles())
	names := lo.Map(session.Engine().Teams(), func(t *draft.Team, _ int) string { return t.Name })
	fmt.Fprintln(w, r.Training(names, res.Statistics, window))
	if len(res.Evaluations) > 0 {
		fmt.Fprintln(w, r.Evaluations(res.Evaluations))
		last := res.Evaluations[len(res.Evaluations)-1]
		fmt.Fprintln(w, r.Summary("Final exploit draft", last.Summary))
	}
}
