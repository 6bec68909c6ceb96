package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuild/internal/artifact"
	"git.home.luguber.info/inful/sitebuild/internal/buildctx"
	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/history"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/pipeline"
	"git.home.luguber.info/inful/sitebuild/internal/scheduler"
)

// Global carries state shared by subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitebuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Clean          CleanCmd          `cmd:"" help:"Remove generated output and staging trees"`
	SetupBuild     SetupBuildCmd     `cmd:"" help:"Prepare output and staging directories"`
	BuildFrontend  BuildFrontendCmd  `cmd:"" help:"Compile styles and copy templates and icons"`
	BuildSamples   BuildSamplesCmd   `cmd:"" help:"Build the generated samples"`
	ImportAll      ImportAllCmd      `cmd:"" help:"Fetch all configured remote documents"`
	BuildPages     BuildPagesCmd     `cmd:"" help:"Render the site pages"`
	FetchArtifacts FetchArtifactsCmd `cmd:"" help:"Download artifacts uploaded by earlier jobs of this build"`
	CollectStatics CollectStaticsCmd `cmd:"" help:"Collect static files, bundling .zip directories into archives"`
	FinalizeBuild  FinalizeBuildCmd  `cmd:"" help:"Write the build metadata record"`
	Build          BuildCmd          `cmd:"" help:"Run the full build pipeline"`
	Watch          WatchCmd          `cmd:"" help:"Rebuild frontend assets on source changes"`
	History        HistoryCmd        `cmd:"" help:"Show recorded build runs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// runtime bundles the collaborators every stage-running command needs.
type runtime struct {
	cfg      *config.Config
	bc       buildctx.Context
	pipe     *pipeline.Pipeline
	hist     *history.Store
	registry *prom.Registry
	closers  []func()
}

// newRuntime loads configuration, detects the build context and wires the
// blob store, metrics recorder, history ledger and pipeline.
func newRuntime(c *CLI) (*runtime, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	bc := buildctx.Detect()

	rt := &runtime{cfg: cfg, bc: bc}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		rt.registry = prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(rt.registry)
	}

	blobs, err := rt.openBlobStore()
	if err != nil {
		return nil, err
	}

	if cfg.History.Path != "" {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		rt.hist = hist
		rt.closers = append(rt.closers, func() { _ = hist.Close() })
		rec = &ledgerRecorder{inner: rec, hist: hist, runID: bc.RunID}
	}

	rt.pipe = pipeline.New(cfg, bc, artifact.NewStore(blobs, rec), rec)
	return rt, nil
}

// openBlobStore picks the remote JetStream store in distributed CI with a
// configured server, otherwise a filesystem store under the staging root.
func (rt *runtime) openBlobStore() (artifact.BlobStore, error) {
	if rt.bc.DistributedCI && rt.cfg.Remote.NATSURL != "" {
		nbs, err := artifact.NewNATSBlobStore(rt.cfg.Remote.NATSURL, rt.cfg.Remote.Bucket)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = nbs.Close() })
		return nbs, nil
	}
	return artifact.NewFSBlobStore(filepath.Join(rt.cfg.StagingRoot, "blobs"))
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// run executes a graph and records the invocation in the history ledger.
func (rt *runtime) run(ctx context.Context, command string, graph []scheduler.Stage) error {
	if rt.hist != nil {
		if err := rt.hist.BeginRun(ctx, rt.bc.RunID, rt.bc.BuildNumber, command); err != nil {
			slog.Warn("History ledger unavailable", "error", err)
		}
	}
	err := rt.pipe.Run(ctx, graph)
	if rt.hist != nil {
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		if ferr := rt.hist.FinishRun(ctx, rt.bc.RunID, outcome); ferr != nil {
			slog.Warn("History ledger unavailable", "error", ferr)
		}
	}
	return err
}

// ledgerRecorder tees stage results into the history ledger alongside the
// wrapped metrics recorder. The scheduler observes a stage's duration before
// reporting its result, so the duration is held until the result arrives.
type ledgerRecorder struct {
	inner metrics.Recorder
	hist  *history.Store
	runID string

	mu        sync.Mutex
	durations map[string]time.Duration
}

func (l *ledgerRecorder) ObserveStageDuration(stage string, d time.Duration) {
	l.mu.Lock()
	if l.durations == nil {
		l.durations = map[string]time.Duration{}
	}
	l.durations[stage] = d
	l.mu.Unlock()
	l.inner.ObserveStageDuration(stage, d)
}

func (l *ledgerRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	l.mu.Lock()
	d := l.durations[stage]
	l.mu.Unlock()
	err := l.hist.RecordStage(context.Background(), history.StageResult{
		RunID:    l.runID,
		Stage:    stage,
		Duration: d,
		Result:   string(result),
	})
	if err != nil {
		slog.Debug("History ledger write failed", "error", err)
	}
	l.inner.IncStageResult(stage, result)
}

func (l *ledgerRecorder) ObserveBuildDuration(d time.Duration) { l.inner.ObserveBuildDuration(d) }
func (l *ledgerRecorder) IncBuildOutcome(outcome string)       { l.inner.IncBuildOutcome(outcome) }
func (l *ledgerRecorder) ObserveArtifactBytes(label, dir string, n int) {
	l.inner.ObserveArtifactBytes(label, dir, n)
}
