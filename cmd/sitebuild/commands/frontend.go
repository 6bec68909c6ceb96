package commands

import "git.home.luguber.info/inful/sitebuild/internal/scheduler"

// BuildFrontendCmd compiles styles and copies templates and icons, then
// uploads the result when running as a distributed CI job.
type BuildFrontendCmd struct{}

func (BuildFrontendCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "build-frontend", func(rt *runtime) []scheduler.Stage {
		return rt.pipe.FrontendStages()
	})
}

// BuildSamplesCmd builds the generated samples.
type BuildSamplesCmd struct{}

func (BuildSamplesCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "build-samples", func(rt *runtime) []scheduler.Stage {
		return rt.pipe.SamplesStages()
	})
}

// BuildPagesCmd renders the site pages.
type BuildPagesCmd struct{}

func (BuildPagesCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "build-pages", func(rt *runtime) []scheduler.Stage {
		return []scheduler.Stage{rt.pipe.PagesStage()}
	})
}
