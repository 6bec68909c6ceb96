// Package statics routes a lazy sequence of filesystem entries into either
// direct passthrough under a destination root or one of many concurrently
// accumulating archive builders, keyed by the archive's intended path.
//
// A directory named "<name>.zip" in the source tree is a placeholder that
// models "this subtree becomes one archive": the directory itself is never
// materialized, and every file beneath it becomes a member of the archive
// written at the same relative path.
package statics

import (
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuild/internal/archive"
	"git.home.luguber.info/inful/sitebuild/internal/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// archiveMarker is the suffix marking a placeholder directory whose subtree
// is bundled into one zip archive.
const archiveMarker = ".zip"

// Entry is one filesystem entry from the source sequence. Path is
// slash-separated and relative to the source root.
type Entry struct {
	Path     string
	IsDir    bool
	Contents []byte
}

// pendingArchive accumulates members destined for one output archive. It is
// exclusively owned by the Collect invocation that created it; members keep
// source-sequence order within the same archive.
type pendingArchive struct {
	target  string
	builder archive.Builder
	members int
}

// Collect consumes the source sequence, classifies each entry as passthrough
// or archive member, writes passthrough entries under destRoot, and routes
// archive members into the pending archive for their target path. Once the
// sequence is exhausted every pending archive is finalized and flushed
// concurrently; Collect returns only after every write has settled and
// surfaces the first write error encountered.
func Collect(entries iter.Seq2[Entry, error], destRoot string) error {
	// Function-scoped by design: concurrent collections must not interfere.
	pending := make(map[string]*pendingArchive)

	for entry, err := range entries {
		if err != nil {
			return err
		}
		if err := classify(entry, destRoot, pending); err != nil {
			return err
		}
	}

	// The map is frozen now; the flush phase fans out over it concurrently.
	var g errgroup.Group
	for _, pa := range pending {
		g.Go(func() error {
			return flush(pa, destRoot)
		})
	}
	return g.Wait()
}

func classify(entry Entry, destRoot string, pending map[string]*pendingArchive) error {
	path := filepath.ToSlash(entry.Path)

	// Placeholder directory: never materialized, but an archive is expected
	// at this path even if it ends up with zero members.
	if entry.IsDir && strings.HasSuffix(path, archiveMarker) {
		if _, err := lookupArchive(pending, path); err != nil {
			return err
		}
		return nil
	}

	// The marker only counts on a path segment boundary: "a.zip/b" routes b
	// into a.zip, while a plain file "a.zip.txt" passes through untouched.
	if idx := strings.Index(path, archiveMarker+"/"); idx >= 0 {
		target := path[:idx+len(archiveMarker)]
		entryName := path[idx+len(archiveMarker)+1:]

		pa, err := lookupArchive(pending, target)
		if err != nil {
			return err
		}
		// Directories within an archive are implied by member paths, and the
		// archive root needs no explicit entry.
		if entry.IsDir || entryName == "" {
			return nil
		}
		pa.members++
		return pa.builder.Add(entryName, entry.Contents)
	}

	return writePassthrough(entry, destRoot)
}

func lookupArchive(pending map[string]*pendingArchive, target string) (*pendingArchive, error) {
	if pa, ok := pending[target]; ok {
		return pa, nil
	}
	b, err := archive.New(archive.FormatZip)
	if err != nil {
		return nil, err
	}
	pa := &pendingArchive{target: target, builder: b}
	pending[target] = pa
	return pa, nil
}

func writePassthrough(entry Entry, destRoot string) error {
	target := filepath.Join(destRoot, filepath.FromSlash(entry.Path))
	if entry.IsDir {
		if err := os.MkdirAll(target, 0o750); err != nil {
			return errors.WriteFailure(err, "create directory %s", entry.Path)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return errors.WriteFailure(err, "create parent for %s", entry.Path)
	}
	if err := os.WriteFile(target, entry.Contents, 0o640); err != nil { // #nosec G306
		return errors.WriteFailure(err, "write %s", entry.Path)
	}
	return nil
}

func flush(pa *pendingArchive, destRoot string) error {
	blob, err := pa.builder.Finalize()
	if err != nil {
		return errors.WriteFailure(err, "finalize archive %s", pa.target)
	}
	target := filepath.Join(destRoot, filepath.FromSlash(pa.target))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return errors.WriteFailure(err, "create parent for archive %s", pa.target)
	}
	if err := os.WriteFile(target, blob, 0o640); err != nil { // #nosec G306
		return errors.WriteFailure(err, "write archive %s", pa.target)
	}
	slog.Debug("Flushed archive", logfields.Archive(pa.target), "members", pa.members, logfields.Bytes(len(blob)))
	return nil
}
