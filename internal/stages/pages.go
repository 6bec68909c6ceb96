package stages

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitebuild/internal/config"
)

// Pages invokes the external static-site renderer over the assembled
// content tree. The renderer is a black box: sitebuild only sequences it.
type Pages struct {
	cfg        config.PagesConfig
	sourceRoot string
}

// NewPages creates the page render action.
func NewPages(cfg config.PagesConfig, sourceRoot string) *Pages {
	return &Pages{cfg: cfg, sourceRoot: sourceRoot}
}

// Render runs the renderer; any failure is a stage failure.
func (p *Pages) Render(ctx context.Context) error {
	argv := p.cfg.RendererCommand
	if len(argv) == 0 {
		argv = []string{"hugo"}
	}
	slog.Info("Executing page renderer", "command", argv[0], "root", p.sourceRoot)
	return runCommand(ctx, argv, p.sourceRoot)
}
