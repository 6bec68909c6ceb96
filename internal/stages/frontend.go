package stages

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// Frontend builds the frontend asset group: compiled styles, copied
// templates and icons.
type Frontend struct {
	cfg        config.FrontendConfig
	sourceRoot string
	outputRoot string
}

// NewFrontend creates the frontend stage actions.
func NewFrontend(cfg config.FrontendConfig, sourceRoot, outputRoot string) *Frontend {
	return &Frontend{cfg: cfg, sourceRoot: sourceRoot, outputRoot: outputRoot}
}

// StyleResult reports the outcome of style compilation. SoftErrors carries
// per-file transform diagnostics that were logged but did not abort the run;
// this is distinct from a hard stage failure.
type StyleResult struct {
	Compiled   int
	SoftErrors []string
}

// Soft reports whether any non-fatal diagnostics were recorded.
func (r StyleResult) Soft() bool { return len(r.SoftErrors) > 0 }

// CompileStyles compiles every style entrypoint under the styles directory
// (files not prefixed with "_", which marks partials). A transform failure
// on a single entrypoint is non-fatal: it is logged, recorded as a soft
// error, and the stream ends gracefully. Only a missing compiler or an
// unreadable styles tree fails the stage.
func (f *Frontend) CompileStyles(ctx context.Context) (StyleResult, error) {
	var result StyleResult
	if len(f.cfg.StylesCommand) == 0 {
		slog.Debug("No style compiler configured; skipping")
		return result, nil
	}
	if _, err := exec.LookPath(f.cfg.StylesCommand[0]); err != nil {
		return result, fmt.Errorf("style compiler not found: %s: %w", f.cfg.StylesCommand[0], err)
	}

	stylesDir := filepath.Join(f.sourceRoot, f.cfg.StylesDir)
	entrypoints, err := findStyleEntrypoints(stylesDir)
	if os.IsNotExist(err) {
		slog.Debug("No styles directory; skipping", logfields.Path(stylesDir))
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("scan styles directory: %w", err)
	}

	outDir := filepath.Join(f.outputRoot, "css")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return result, err
	}

	for _, entry := range entrypoints {
		rel, _ := filepath.Rel(stylesDir, entry)
		out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))+".css")

		argv := append(append([]string{}, f.cfg.StylesCommand...), entry, out)
		if err := runCommand(ctx, argv, stylesDir); err != nil {
			// Non-fatal by the documented exception: log and let the
			// compilation stream end gracefully.
			slog.Warn("Style transform failed (non-fatal)", logfields.Path(rel), logfields.Error(err))
			result.SoftErrors = append(result.SoftErrors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		result.Compiled++
	}

	slog.Info("Styles compiled", "compiled", result.Compiled, "soft_errors", len(result.SoftErrors))
	return result, nil
}

func findStyleEntrypoints(dir string) ([]string, error) {
	var entrypoints []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		// Partials (underscore prefix) are pulled in by entrypoints.
		if strings.HasPrefix(name, "_") {
			return nil
		}
		switch filepath.Ext(name) {
		case ".scss", ".sass":
			entrypoints = append(entrypoints, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entrypoints, nil
}

// CopyTemplates copies the template tree verbatim into the output root.
func (f *Frontend) CopyTemplates(_ context.Context) error {
	return f.copyTree(f.cfg.TemplatesDir, "templates")
}

// CopyIcons copies the icon tree verbatim into the output root.
func (f *Frontend) CopyIcons(_ context.Context) error {
	return f.copyTree(f.cfg.IconsDir, "icons")
}

func (f *Frontend) copyTree(srcRel, dstRel string) error {
	if srcRel == "" {
		return nil
	}
	src := filepath.Join(f.sourceRoot, srcRel)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		slog.Debug("Source tree absent; nothing to copy", logfields.Path(src))
		return nil
	}
	return CopyDir(src, filepath.Join(f.outputRoot, dstRel))
}
