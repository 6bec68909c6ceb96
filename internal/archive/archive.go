// Package archive builds and extracts the compressed archive blobs used for
// artifact transport and ZIP-bundled static asset groups.
package archive

import (
	"fmt"
	"time"
)

// Format identifies the on-disk archive encoding.
type Format string

const (
	FormatTarGz Format = "tar.gz"
	FormatZip   Format = "zip"
)

// Ext returns the filename extension for the format (no leading dot).
func (f Format) Ext() string { return string(f) }

// Builder accumulates named byte payloads and finalizes them into a single
// compressed archive blob. Finalize is terminal: Add after Finalize errors,
// and Finalize with zero members yields a valid empty archive.
type Builder interface {
	Add(name string, payload []byte) error
	// AddDir records an explicit (possibly empty) directory entry.
	AddDir(name string) error
	Finalize() ([]byte, error)
}

// New returns a Builder for the given format.
func New(format Format) (Builder, error) {
	switch format {
	case FormatTarGz:
		return newTarGzBuilder(), nil
	case FormatZip:
		return newZipBuilder(), nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %q", format)
	}
}

// Extract unpacks an archive blob into root. Extraction is additive with
// last-write-wins semantics on path collisions; nothing outside the archive
// is touched.
func Extract(format Format, blob []byte, root string) error {
	switch format {
	case FormatTarGz:
		return extractTarGz(blob, root)
	case FormatZip:
		return extractZip(blob, root)
	default:
		return fmt.Errorf("unsupported archive format: %q", format)
	}
}

// entryModTime keeps archive bytes stable across runs of the same input, so
// repeated uploads of unchanged content produce identical blobs.
var entryModTime = time.Unix(0, 0).UTC()

var errFinalized = fmt.Errorf("archive already finalized")
