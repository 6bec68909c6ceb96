package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type zipBuilder struct {
	buf       bytes.Buffer
	zw        *zip.Writer
	finalized bool
}

func newZipBuilder() *zipBuilder {
	b := &zipBuilder{}
	b.zw = zip.NewWriter(&b.buf)
	return b
}

func (b *zipBuilder) Add(name string, payload []byte) error {
	if b.finalized {
		return errFinalized
	}
	hdr := &zip.FileHeader{
		Name:     filepath.ToSlash(name),
		Method:   zip.Deflate,
		Modified: entryModTime,
	}
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func (b *zipBuilder) AddDir(name string) error {
	if b.finalized {
		return errFinalized
	}
	n := filepath.ToSlash(name)
	if !strings.HasSuffix(n, "/") {
		n += "/"
	}
	hdr := &zip.FileHeader{Name: n, Modified: entryModTime}
	if _, err := b.zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("create zip dir entry %s: %w", name, err)
	}
	return nil
}

func (b *zipBuilder) Finalize() ([]byte, error) {
	if b.finalized {
		return nil, errFinalized
	}
	b.finalized = true
	if err := b.zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	return b.buf.Bytes(), nil
}

func extractZip(blob []byte, root string) error {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("create parent for %s: %w", f.Name, err)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("read zip entry %s: %w", f.Name, err)
		}
		if err := os.WriteFile(target, data, 0o640); err != nil { // #nosec G306
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return nil
}

// safeJoin resolves an archive entry name under root, rejecting traversal.
func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || cleaned == ".." {
		return "", fmt.Errorf("archive entry escapes extraction root: %q", name)
	}
	return filepath.Join(root, cleaned), nil
}
