package commands

import "git.home.luguber.info/inful/sitebuild/internal/scheduler"

// BuildCmd runs the composed pipeline: fetch earlier job output, then
// samples and the frontend group in parallel, then pages and the metadata
// record.
type BuildCmd struct{}

func (BuildCmd) Run(_ *Global, c *CLI) error {
	return runGraph(c, "build", func(rt *runtime) []scheduler.Stage {
		return rt.pipe.BuildGraph()
	})
}
