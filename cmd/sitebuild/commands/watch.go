package commands

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/scheduler"
)

// WatchCmd rebuilds frontend assets whenever their sources change. Intended
// for local development; pairs with the metrics endpoint when enabled.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before a rebuild after a change" default:"300ms"`
}

func (w WatchCmd) Run(_ *Global, c *CLI) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metricsSrv *http.Server
	if rt.registry != nil {
		metricsSrv = metrics.Serve(rt.cfg.Metrics.Listen, rt.registry)
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = metricsSrv.Shutdown(shutCtx)
		}()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range w.watchRoots(rt) {
		if err := addTree(watcher, dir); err != nil {
			return err
		}
	}

	// Initial build so the output reflects the current sources.
	if err := rt.run(ctx, "watch", w.rebuildGraph(rt)); err != nil {
		slog.Warn("Initial build failed", logfields.Error(err))
	}

	slog.Info("Watching for changes", "debounce", w.Debounce)

	var timer *time.Timer
	rebuild := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories must be watched too.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addTree(watcher, event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.Debounce, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		case <-rebuild:
			slog.Info("Sources changed, rebuilding")
			if err := rt.run(ctx, "watch", w.rebuildGraph(rt)); err != nil {
				slog.Error("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

// watchRoots lists the source trees whose changes trigger a rebuild.
func (WatchCmd) watchRoots(rt *runtime) []string {
	var roots []string
	for _, rel := range []string{
		rt.cfg.Frontend.StylesDir,
		rt.cfg.Frontend.TemplatesDir,
		rt.cfg.Frontend.IconsDir,
		rt.cfg.Frontend.StaticsDir,
	} {
		if rel == "" {
			continue
		}
		roots = append(roots, filepath.Join(rt.cfg.SourceRoot, rel))
	}
	return roots
}

func (WatchCmd) rebuildGraph(rt *runtime) []scheduler.Stage {
	graph := rt.pipe.FrontendStages()
	return append(graph, rt.pipe.CollectStaticsStages()...)
}

// addTree registers dir and every directory beneath it. Absent roots are
// skipped so a project without, say, icons can still run watch mode.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
