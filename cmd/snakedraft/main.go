package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Train   TrainCmd         `cmd:"" help:"Train every team's drafting policy"`
	Draft   DraftCmd         `cmd:"" help:"Run one exploit draft from a checkpoint"`
	Board   BoardCmd         `cmd:"" help:"Show the draft board a configuration loads"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("snakedraft"),
		kong.Description("Multi-agent snake draft simulator with learned drafting policies"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
