package commands

import "git.home.luguber.info/inful/sitebuild/internal/scheduler"

// FetchArtifactsCmd downloads artifacts uploaded by earlier jobs of the same
// build and unpacks them into the output root.
type FetchArtifactsCmd struct{}

func (FetchArtifactsCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "fetch-artifacts", func(rt *runtime) []scheduler.Stage {
		return []scheduler.Stage{rt.pipe.FetchArtifactsStage()}
	})
}

// CollectStaticsCmd routes the statics tree through the collector.
type CollectStaticsCmd struct{}

func (CollectStaticsCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "collect-statics", func(rt *runtime) []scheduler.Stage {
		return rt.pipe.CollectStaticsStages()
	})
}

// ImportAllCmd fetches all configured remote documents.
type ImportAllCmd struct{}

func (ImportAllCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "import-all", func(rt *runtime) []scheduler.Stage {
		return []scheduler.Stage{rt.pipe.ImportStage()}
	})
}

// FinalizeBuildCmd writes the build metadata record.
type FinalizeBuildCmd struct{}

func (FinalizeBuildCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "finalize-build", func(rt *runtime) []scheduler.Stage {
		return []scheduler.Stage{rt.pipe.FinalizeStage()}
	})
}
