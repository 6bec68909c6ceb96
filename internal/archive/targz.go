package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

type tarGzBuilder struct {
	buf       bytes.Buffer
	gw        *gzip.Writer
	tw        *tar.Writer
	finalized bool
}

func newTarGzBuilder() *tarGzBuilder {
	b := &tarGzBuilder{}
	b.gw = gzip.NewWriter(&b.buf)
	b.tw = tar.NewWriter(b.gw)
	return b
}

func (b *tarGzBuilder) Add(name string, payload []byte) error {
	if b.finalized {
		return errFinalized
	}
	hdr := &tar.Header{
		Name:    filepath.ToSlash(name),
		Mode:    0o644,
		Size:    int64(len(payload)),
		ModTime: entryModTime,
	}
	if err := b.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %s: %w", name, err)
	}
	if _, err := b.tw.Write(payload); err != nil {
		return fmt.Errorf("write tar entry %s: %w", name, err)
	}
	return nil
}

func (b *tarGzBuilder) AddDir(name string) error {
	if b.finalized {
		return errFinalized
	}
	n := filepath.ToSlash(name)
	if !strings.HasSuffix(n, "/") {
		n += "/"
	}
	hdr := &tar.Header{
		Name:     n,
		Typeflag: tar.TypeDir,
		Mode:     0o755,
		ModTime:  entryModTime,
	}
	if err := b.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar dir header %s: %w", name, err)
	}
	return nil
}

func (b *tarGzBuilder) Finalize() ([]byte, error) {
	if b.finalized {
		return nil, errFinalized
	}
	b.finalized = true
	if err := b.tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	if err := b.gw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return b.buf.Bytes(), nil
}

func extractTarGz(blob []byte, root string) error {
	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = gr.Close() }()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar stream: %w", err)
		}

		target, err := safeJoin(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("create dir %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return fmt.Errorf("create parent for %s: %w", hdr.Name, err)
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
			}
			if err := os.WriteFile(target, data, 0o640); err != nil { // #nosec G306
				return fmt.Errorf("write %s: %w", hdr.Name, err)
			}
		default:
			// Symlinks and devices never appear in our own archives; skip.
		}
	}
}
