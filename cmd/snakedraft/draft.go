package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lox/snakedraft/cmd/snakedraft/shared"
	"github.com/lox/snakedraft/internal/display"
	"github.com/lox/snakedraft/internal/simulator"
)

// DraftCmd replays one exploit-only draft with checkpointed policies
type DraftCmd struct {
	ConfigFlags

	Checkpoint string `arg:"" help:"Checkpoint written by train"`
	Picks      bool   `help:"Also print the pick log"`
	JSON       bool   `help:"Print the draft summary as JSON"`
}

func (c *DraftCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	logger := shared.SetupLogger(c.Debug, cfg.League.LogLevel)
	ctx, cancel := shared.SetupSignalHandlerWithLogger(logger)
	defer cancel()

	session, err := simulator.New(cfg, simulator.Options{Logger: logger})
	if err != nil {
		return err
	}
	if err := session.Restore(c.Checkpoint); err != nil {
		return err
	}
	summary, err := session.Draft(ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	r := display.NewRenderer(session.Categories(), display.DefaultStyles())
	fmt.Println(r.Summary("Exploit draft", summary))
	if c.Picks {
		fmt.Println(r.Picks(summary))
	}
	return nil
}
