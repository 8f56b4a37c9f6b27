package main

import (
	"github.com/lox/snakedraft/internal/config"
)

// ConfigFlags are shared by every command that builds a league.
type ConfigFlags struct {
	Config  string `short:"c" default:"snakedraft.hcl" help:"HCL configuration file (defaults apply when missing)"`
	Dataset string `help:"CSV draft board, overrides league.dataset"`
	Seed    *int64 `help:"Run seed, overrides training.seed"`
	Debug   bool   `help:"Enable debug logging"`
}

func (f ConfigFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, err
	}
	if f.Dataset != "" {
		cfg.League.Dataset = f.Dataset
	}
	if f.Seed != nil {
		cfg.Training.Seed = f.Seed
	}
	return cfg, cfg.Validate()
}
