package artifact

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/sitebuild/internal/errors"
)

// NATSBlobStore stores artifact blobs in a JetStream object store bucket.
// This is the remote backend used when a build is split across isolated CI
// jobs that must exchange intermediate output.
type NATSBlobStore struct {
	conn   *nats.Conn
	bucket jetstream.ObjectStore
}

// NewNATSBlobStore connects to the JetStream server and creates or opens the
// object store bucket.
func NewNATSBlobStore(url, bucket string) (*NATSBlobStore, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Transport(err, "connect to NATS at %s", url)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Transport(err, "create JetStream context")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	obj, err := js.ObjectStore(ctx, bucket)
	if err != nil {
		obj, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "sitebuild artifact exchange between CI jobs",
		})
		if err != nil {
			conn.Close()
			return nil, errors.Transport(err, "open object store bucket %s", bucket)
		}
	}

	slog.Info("NATS blob store initialized", "url", url, "bucket", bucket)
	return &NATSBlobStore{conn: conn, bucket: obj}, nil
}

func (s *NATSBlobStore) Put(ctx context.Context, key string, data []byte) error {
	// PutBytes overwrites an existing object with the same name, which is
	// exactly the rerun-overwrites semantics remote keys are derived for.
	if _, err := s.bucket.PutBytes(ctx, key, data); err != nil {
		return errors.Transport(err, "upload %s", key)
	}
	return nil
}

func (s *NATSBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.GetBytes(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.NotFound(key)
		}
		return nil, errors.Transport(err, "download %s", key)
	}
	return data, nil
}

// Close releases the NATS connection.
func (s *NATSBlobStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
