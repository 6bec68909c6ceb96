package commands

import "git.home.luguber.info/inful/sitebuild/internal/scheduler"

// CleanCmd removes the output and staging trees.
type CleanCmd struct{}

func (CleanCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "clean", func(rt *runtime) []scheduler.Stage {
		return []scheduler.Stage{rt.pipe.CleanStage()}
	})
}

// SetupBuildCmd prepares the output and staging directories.
type SetupBuildCmd struct{}

func (SetupBuildCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "setup-build", func(rt *runtime) []scheduler.Stage {
		return []scheduler.Stage{rt.pipe.SetupStage()}
	})
}
