package stages

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// Clean removes previously generated output trees. Missing directories are
// not an error.
func Clean(_ context.Context, roots ...string) error {
	for _, root := range roots {
		if root == "" {
			continue
		}
		if err := os.RemoveAll(root); err != nil {
			return err
		}
		slog.Info("Removed output tree", logfields.Path(root))
	}
	return nil
}
