package statics

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
)

// WalkRoot adapts a filesystem tree into the lazy entry sequence consumed by
// Collect. Paths are reported relative to srcRoot; file contents are loaded
// only when an entry is yielded. An absent root is an empty sequence.
func WalkRoot(srcRoot string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if _, err := os.Stat(srcRoot); os.IsNotExist(err) {
			return
		}
		err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == srcRoot {
				return nil
			}
			rel, relErr := filepath.Rel(srcRoot, path)
			if relErr != nil {
				return relErr
			}

			entry := Entry{Path: filepath.ToSlash(rel), IsDir: d.IsDir()}
			if !d.IsDir() {
				data, readErr := os.ReadFile(path) // #nosec G304 - path comes from the walk
				if readErr != nil {
					return readErr
				}
				entry.Contents = data
			}

			if !yield(entry, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}
