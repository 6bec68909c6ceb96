package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/errors"
	"git.home.luguber.info/inful/sitebuild/internal/history"
)

// HistoryCmd prints recorded build runs from the local ledger.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	RunID string `name:"run" help:"Show per-stage results for one run ID"`
}

func (h HistoryCmd) Run(_ *Global, c *CLI) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.Configuration("history ledger disabled: set history.path in %s", c.Config)
	}

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()

	ctx := context.Background()
	if h.RunID != "" {
		return printStages(ctx, hist, h.RunID)
	}

	runs, err := hist.RecentRuns(ctx, h.Limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-14s  build=%-8s  %-7s  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Command, r.BuildNumber, r.Outcome, r.RunID)
	}
	return nil
}

func printStages(ctx context.Context, hist *history.Store, runID string) error {
	stages, err := hist.StagesForRun(ctx, runID)
	if err != nil {
		return err
	}
	for _, s := range stages {
		fmt.Printf("%-18s  %-8s  %s\n", s.Stage, s.Result, s.Duration)
	}
	return nil
}
