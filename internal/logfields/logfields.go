package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyRunID       = "run_id"
	KeyBuildNumber = "build_number"
	KeyRemoteKey   = "remote_key"
	KeyPath        = "path"
	KeyArchive     = "archive"
	KeyImporter    = "importer"
	KeyBytes       = "bytes"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func BuildNumber(n string) slog.Attr  { return slog.String(KeyBuildNumber, n) }
func RemoteKey(key string) slog.Attr  { return slog.String(KeyRemoteKey, key) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Archive(p string) slog.Attr      { return slog.String(KeyArchive, p) }
func Importer(name string) slog.Attr  { return slog.String(KeyImporter, name) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
