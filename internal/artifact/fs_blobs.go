package artifact

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuild/internal/errors"
)

// FSBlobStore keeps artifact blobs under a local directory. Outside a
// distributed CI environment (and in tests) this stands in for the remote
// store: cross-job transport degrades to plain files on disk.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates a filesystem-backed blob store rooted at dir.
func NewFSBlobStore(dir string) (*FSBlobStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.WriteFailure(err, "create blob store root %s", dir)
	}
	return &FSBlobStore{root: dir}, nil
}

func (s *FSBlobStore) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Transport(err, "prepare blob path for %s", key)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil { // #nosec G306
		return errors.Transport(err, "store blob %s", key)
	}
	return nil
}

func (s *FSBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key)) // #nosec G304 - key is derived, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(key)
		}
		return nil, errors.Transport(err, "read blob %s", key)
	}
	return data, nil
}

func (s *FSBlobStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
