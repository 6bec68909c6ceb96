// Package stages implements the build stage actions driven by the scheduler:
// frontend assets, generated samples, remote-document import, page rendering,
// cleanup and the build metadata record.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// runCommand executes an external collaborator (style compiler, sample
// generator, page renderer) and folds its output into the returned error so
// stage failures carry the diagnostics.
func runCommand(ctx context.Context, argv []string, dir string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("command not found: %s: %w", argv[0], err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 - argv comes from config
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Invoking external command", "command", argv[0], "dir", dir)
	err := cmd.Run()

	if out := stdout.String(); out != "" {
		slog.Debug("command stdout", "command", argv[0], "output", out)
	}
	if errOut := stderr.String(); errOut != "" {
		slog.Warn("command stderr", "command", argv[0], "error_output", errOut)
	}

	if err != nil {
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		if output != "" {
			return fmt.Errorf("%s failed: %w: %s", argv[0], err, output)
		}
		return fmt.Errorf("%s failed: %w", argv[0], err)
	}
	return nil
}
