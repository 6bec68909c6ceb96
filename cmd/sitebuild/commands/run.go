package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuild/internal/scheduler"
)

// runGraph is the shared body of every single-graph command: assemble the
// runtime, pick the stage graph, execute it under signal cancellation.
func runGraph(c *CLI, command string, pick func(*runtime) []scheduler.Stage) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rt.run(ctx, command, pick(rt))
}
