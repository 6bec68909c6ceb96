// Package artifact packs filesystem paths into portable archives, ships them
// to a blob store keyed per build, and reconstitutes them in a later job.
package artifact

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuild/internal/archive"
	"git.home.luguber.info/inful/sitebuild/internal/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
)

// Artifact is a packed, transportable bundle of filesystem content tied to a
// remote key. Produced by Pack, consumed by Upload or Unpack.
type Artifact struct {
	LocalPaths []string
	RemoteKey  string
	Format     archive.Format
	Blob       []byte
}

// BlobStore abstracts the remote object store used to exchange artifacts
// between isolated CI jobs. Get returns a notfound-category error when the
// key has never been written, distinguished from transport failures.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store packs, transports and unpacks artifacts.
type Store struct {
	blobs BlobStore
	rec   metrics.Recorder
}

// NewStore creates an artifact store over the given blob backend.
func NewStore(blobs BlobStore, rec metrics.Recorder) *Store {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Store{blobs: blobs, rec: rec}
}

// Pack archives the listed paths (relative to root) into a single blob.
// Archiving is best-effort over paths, not fail-fast: producer stages may
// conditionally skip generating some of them. A listed path with a trailing
// separator is treated as a directory and recorded as an empty directory
// entry even when absent; a missing file is simply omitted.
func (s *Store) Pack(root string, paths []string, format archive.Format, key string) (*Artifact, error) {
	b, err := archive.New(format)
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		rel := strings.TrimSuffix(filepath.ToSlash(p), "/")
		abs := filepath.Join(root, filepath.FromSlash(rel))

		info, statErr := os.Stat(abs)
		switch {
		case statErr != nil && strings.HasSuffix(filepath.ToSlash(p), "/"):
			if err := b.AddDir(rel); err != nil {
				return nil, err
			}
		case statErr != nil:
			slog.Debug("Skipping missing path during pack", logfields.Path(p))
		case info.IsDir():
			if err := packTree(b, root, rel); err != nil {
				return nil, err
			}
		default:
			if err := packFile(b, abs, rel); err != nil {
				return nil, err
			}
		}
	}

	blob, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	return &Artifact{LocalPaths: paths, RemoteKey: key, Format: format, Blob: blob}, nil
}

func packTree(b archive.Builder, root, rel string) error {
	base := filepath.Join(root, filepath.FromSlash(rel))
	empty := true
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		inner, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		name := filepath.ToSlash(inner)
		if d.IsDir() {
			if path == base {
				return nil
			}
			empty = false
			return b.AddDir(name)
		}
		empty = false
		return packFile(b, path, name)
	})
	if err != nil {
		return err
	}
	if empty {
		return b.AddDir(rel)
	}
	return nil
}

func packFile(b archive.Builder, abs, name string) error {
	data, err := os.ReadFile(abs) // #nosec G304 - path derives from configured roots
	if err != nil {
		return errors.WriteFailure(err, "read %s for packing", name)
	}
	return b.Add(name, data)
}

// Upload ships the artifact blob to its remote key. No automatic retry:
// failures propagate to the owning stage.
func (s *Store) Upload(ctx context.Context, a *Artifact) error {
	if err := s.blobs.Put(ctx, a.RemoteKey, a.Blob); err != nil {
		return err
	}
	s.rec.ObserveArtifactBytes(a.RemoteKey, "upload", len(a.Blob))
	slog.Info("Uploaded artifact", logfields.RemoteKey(a.RemoteKey), logfields.Bytes(len(a.Blob)))
	return nil
}

// Fetch downloads an artifact by key. Returns a notfound-category error if
// the key does not exist (an earlier stage never ran), so callers can treat
// "nothing to fetch" as a skip.
func (s *Store) Fetch(ctx context.Context, key string) (*Artifact, error) {
	blob, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.rec.ObserveArtifactBytes(key, "download", len(blob))
	slog.Info("Fetched artifact", logfields.RemoteKey(key), logfields.Bytes(len(blob)))
	return &Artifact{RemoteKey: key, Format: FormatForKey(key), Blob: blob}, nil
}

// Unpack extracts the artifact into root. Extraction is additive, never a
// destructive sync, and idempotent: unpacking twice leaves the filesystem in
// the same final state as once.
func (s *Store) Unpack(root string, a *Artifact) error {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return errors.WriteFailure(err, "create unpack root %s", root)
	}
	if err := archive.Extract(a.Format, a.Blob, root); err != nil {
		return errors.WriteFailure(err, "unpack %s into %s", a.RemoteKey, root)
	}
	return nil
}

// FormatForKey infers the archive format from a remote key's extension.
func FormatForKey(key string) archive.Format {
	if strings.HasSuffix(key, ".zip") {
		return archive.FormatZip
	}
	return archive.FormatTarGz
}
