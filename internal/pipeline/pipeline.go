// Package pipeline assembles the stage graphs executed by the CLI commands
// and owns the CI-conditional artifact transport between build jobs.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuild/internal/archive"
	"git.home.luguber.info/inful/sitebuild/internal/artifact"
	"git.home.luguber.info/inful/sitebuild/internal/buildctx"
	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/scheduler"
	"git.home.luguber.info/inful/sitebuild/internal/stages"
	"git.home.luguber.info/inful/sitebuild/internal/statics"
)

// Stage names. The upload stages derive theirs from the artifact label.
const (
	StageClean          = "clean"
	StageSetup          = "setup-build"
	StageFetchArtifacts = "fetch-artifacts"
	StageCompileStyles  = "compile-styles"
	StageCopyTemplates  = "copy-templates"
	StageCopyIcons      = "copy-icons"
	StageBuildSamples   = "build-samples"
	StageImportAll      = "import-all"
	StageCollectStatics = "collect-statics"
	StageBuildPages     = "build-pages"
	StageFinalize       = "finalize-build"
)

// artifactLabels maps each inter-job artifact label to the output-root
// relative paths it packs. A trailing slash marks a path that is a directory
// even when absent, so an empty tree survives the round trip.
var artifactLabels = map[string][]string{
	"frontend": {"css/", "templates/", "icons/"},
	"samples":  {"samples/"},
	"statics":  {"static/"},
}

// Pipeline wires stage actions to their collaborators for one invocation.
type Pipeline struct {
	cfg   *config.Config
	bc    buildctx.Context
	store *artifact.Store
	rec   metrics.Recorder

	frontend  *stages.Frontend
	samples   *stages.Samples
	pages     *stages.Pages
	importers *stages.Importers
}

// New assembles a pipeline. The build context is passed explicitly so stage
// actions stay deterministic functions of their inputs.
func New(cfg *config.Config, bc buildctx.Context, store *artifact.Store, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pipeline{
		cfg:       cfg,
		bc:        bc,
		store:     store,
		rec:       rec,
		frontend:  stages.NewFrontend(cfg.Frontend, cfg.SourceRoot, cfg.OutputRoot),
		samples:   stages.NewSamples(cfg.Samples, cfg.SourceRoot),
		pages:     stages.NewPages(cfg.Pages, cfg.SourceRoot),
		importers: stages.NewImporters(cfg.Importers, cfg.SourceRoot, nil, cfg.ImportRetry.Policy()),
	}
}

// Run executes a stage graph and records overall duration and outcome.
func (p *Pipeline) Run(ctx context.Context, graph []scheduler.Stage) error {
	start := time.Now()
	err := scheduler.Run(ctx, graph, p.rec)
	p.rec.ObserveBuildDuration(time.Since(start))
	if err != nil {
		p.rec.IncBuildOutcome("failed")
		return err
	}
	p.rec.IncBuildOutcome("success")
	return nil
}

// CleanStage removes the output and staging trees.
func (p *Pipeline) CleanStage() scheduler.Stage {
	return scheduler.Stage{Name: StageClean, Action: func(ctx context.Context) error {
		return stages.Clean(ctx, p.cfg.OutputRoot, p.cfg.StagingRoot)
	}}
}

// SetupStage prepares the output and staging roots.
func (p *Pipeline) SetupStage() scheduler.Stage {
	return scheduler.Stage{Name: StageSetup, Action: func(context.Context) error {
		for _, dir := range []string{p.cfg.OutputRoot, p.cfg.StagingRoot} {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return errors.WriteFailure(err, "create %s", dir)
			}
		}
		return nil
	}}
}

// FrontendStages builds the frontend asset group. Styles, templates and
// icons run as independent parallel stages; in distributed CI an upload
// stage ships the combined output once all three complete.
func (p *Pipeline) FrontendStages() []scheduler.Stage {
	group := []scheduler.Stage{
		{
			Name: StageCompileStyles,
			Action: func(ctx context.Context) error {
				result, err := p.frontend.CompileStyles(ctx)
				if err != nil {
					return err
				}
				if result.Soft() {
					slog.Warn("Style compilation finished with non-fatal diagnostics",
						"soft_errors", len(result.SoftErrors))
				}
				return nil
			},
			ParallelWith: []string{StageCopyTemplates, StageCopyIcons},
		},
		{
			Name:         StageCopyTemplates,
			Action:       p.frontend.CopyTemplates,
			ParallelWith: []string{StageCompileStyles, StageCopyIcons},
		},
		{
			Name:         StageCopyIcons,
			Action:       p.frontend.CopyIcons,
			ParallelWith: []string{StageCompileStyles, StageCopyTemplates},
		},
	}
	return p.withUpload(group, "frontend")
}

// SamplesStages builds the generated samples, with a CI upload trailer.
func (p *Pipeline) SamplesStages() []scheduler.Stage {
	group := []scheduler.Stage{{Name: StageBuildSamples, Action: p.samples.Build}}
	return p.withUpload(group, "samples")
}

// ImportStage runs all remote document importers as one stage.
func (p *Pipeline) ImportStage() scheduler.Stage {
	return scheduler.Stage{Name: StageImportAll, Action: p.importers.ImportAll}
}

// CollectStaticsStages routes the statics tree through the collector, then
// uploads the result in distributed CI.
func (p *Pipeline) CollectStaticsStages() []scheduler.Stage {
	group := []scheduler.Stage{{Name: StageCollectStatics, Action: func(context.Context) error {
		src := filepath.Join(p.cfg.SourceRoot, p.cfg.Frontend.StaticsDir)
		dest := filepath.Join(p.cfg.OutputRoot, "static")
		return statics.Collect(statics.WalkRoot(src), dest)
	}}}
	return p.withUpload(group, "statics")
}

// FetchArtifactsStage reconstitutes output uploaded by earlier jobs of the
// same build number. A label no earlier job uploaded is skipped, not failed.
func (p *Pipeline) FetchArtifactsStage() scheduler.Stage {
	return scheduler.Stage{Name: StageFetchArtifacts, Action: func(ctx context.Context) error {
		if !p.bc.DistributedCI {
			slog.Debug("Not a distributed CI run, nothing to fetch")
			return nil
		}
		for label := range artifactLabels {
			key, err := p.bc.RemoteKey(p.cfg.Remote.Root, label, archive.FormatTarGz.Ext())
			if err != nil {
				return err
			}
			art, err := p.store.Fetch(ctx, key)
			if errors.IsNotFound(err) {
				slog.Info("No artifact uploaded for label, skipping", logfields.RemoteKey(key))
				continue
			}
			if err != nil {
				return err
			}
			if err := p.store.Unpack(p.cfg.OutputRoot, art); err != nil {
				return err
			}
		}
		return nil
	}}
}

// PagesStage renders the site after the named dependencies complete.
func (p *Pipeline) PagesStage(deps ...string) scheduler.Stage {
	return scheduler.Stage{Name: StageBuildPages, DependsOn: deps, Action: p.pages.Render}
}

// FinalizeStage writes the build metadata record near the end of a run.
func (p *Pipeline) FinalizeStage(deps ...string) scheduler.Stage {
	return scheduler.Stage{Name: StageFinalize, DependsOn: deps, Action: func(context.Context) error {
		md := stages.GatherMetadata(p.bc, p.cfg.SourceRoot)
		return stages.WriteMetadata(md, filepath.Join(p.cfg.OutputRoot, "build.yaml"))
	}}
}

// BuildGraph composes the full build: fetch earlier job output, then samples
// and the frontend group in parallel, then page rendering, then the metadata
// record.
func (p *Pipeline) BuildGraph() []scheduler.Stage {
	graph := []scheduler.Stage{p.FetchArtifactsStage()}

	graph = append(graph, scheduler.Stage{
		Name:         StageBuildSamples,
		Action:       p.samples.Build,
		DependsOn:    []string{StageFetchArtifacts},
		ParallelWith: []string{StageCompileStyles, StageCopyTemplates, StageCopyIcons},
	})

	// The composed build runs end to end in one job, so the frontend group
	// joins without its upload trailer.
	for _, st := range p.FrontendStages() {
		if st.Name == "upload-frontend" {
			continue
		}
		st.DependsOn = []string{StageFetchArtifacts}
		st.ParallelWith = append(st.ParallelWith, StageBuildSamples)
		graph = append(graph, st)
	}

	graph = append(graph, p.PagesStage(
		StageBuildSamples, StageCompileStyles, StageCopyTemplates, StageCopyIcons,
	))
	graph = append(graph, p.FinalizeStage(StageBuildPages))
	return graph
}

// withUpload appends a transport stage shipping the group's output to the
// remote store when running in distributed CI. Outside CI the group is
// returned unchanged and artifacts remain on local disk.
func (p *Pipeline) withUpload(group []scheduler.Stage, label string) []scheduler.Stage {
	if !p.bc.DistributedCI {
		return group
	}
	deps := make([]string, 0, len(group))
	for _, st := range group {
		deps = append(deps, st.Name)
	}
	upload := scheduler.Stage{
		Name:      "upload-" + label,
		DependsOn: deps,
		Action: func(ctx context.Context) error {
			key, err := p.bc.RemoteKey(p.cfg.Remote.Root, label, archive.FormatTarGz.Ext())
			if err != nil {
				return err
			}
			art, err := p.store.Pack(p.cfg.OutputRoot, artifactLabels[label], archive.FormatTarGz, key)
			if err != nil {
				return err
			}
			return p.store.Upload(ctx, art)
		},
	}
	return append(group, upload)
}
