package stages

import (
	"context"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuild/internal/config"
)

// Samples invokes the external sample generator that turns sample sources
// into publishable pages.
type Samples struct {
	cfg        config.SamplesConfig
	sourceRoot string
}

// NewSamples creates the sample build action.
func NewSamples(cfg config.SamplesConfig, sourceRoot string) *Samples {
	return &Samples{cfg: cfg, sourceRoot: sourceRoot}
}

// Build runs the configured sample generator. Its failure is a stage failure.
func (s *Samples) Build(ctx context.Context) error {
	if len(s.cfg.Command) == 0 {
		slog.Debug("No sample generator configured; skipping")
		return nil
	}
	return runCommand(ctx, s.cfg.Command, filepath.Join(s.sourceRoot, s.cfg.Dir))
}
