// Package buildctx captures the immutable per-run facts consulted by stages
// to decide whether to perform remote artifact transport.
package buildctx

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuild/internal/errors"
)

// Environment variables consulted by Detect. BUILD_NUMBER and BUILD_JOB_ID
// are supplied by the hosting CI server; TEAMCITY_VERSION is its presence
// marker. SITEBUILD_DISTRIBUTED forces distributed mode for local testing.
const (
	EnvDistributed = "SITEBUILD_DISTRIBUTED"
	EnvCIMarker    = "TEAMCITY_VERSION"
	EnvBuildNumber = "BUILD_NUMBER"
	EnvJobID       = "BUILD_JOB_ID"
)

// Context holds immutable per-run facts. Created once at process start and
// passed explicitly into stage constructors; stages never consult ambient
// environment state themselves.
type Context struct {
	// DistributedCI reports whether this run is one job of a build split
	// across multiple isolated CI jobs. It gates all remote transport:
	// outside distributed CI, staged artifacts remain on local disk.
	DistributedCI bool

	// BuildNumber and JobID are opaque identifiers supplied by the CI server.
	BuildNumber string
	JobID       string

	// RunID is a fresh identifier for this process invocation, stamped into
	// logs and the history ledger.
	RunID string
}

// Detect builds a Context from the process environment.
func Detect() Context {
	return Context{
		DistributedCI: os.Getenv(EnvDistributed) == "true" || os.Getenv(EnvCIMarker) != "",
		BuildNumber:   os.Getenv(EnvBuildNumber),
		JobID:         os.Getenv(EnvJobID),
		RunID:         uuid.NewString(),
	}
}

// RemoteKey derives the blob store key for a stage-supplied label:
// <root>/<buildNumber>/<label>.<ext>. The key is deterministic from the
// context, so re-running the same build/stage overwrites the prior object.
// Missing BuildNumber is a configuration error, never a silent default.
func (c Context) RemoteKey(root, label, ext string) (string, error) {
	if c.BuildNumber == "" {
		return "", errors.Configuration("no build number in environment (%s); cannot derive remote key for %s", EnvBuildNumber, label)
	}
	return fmt.Sprintf("%s/%s/%s.%s", root, c.BuildNumber, label, ext), nil
}

// Environment returns a short name for the execution environment, recorded
// in the build metadata document.
func (c Context) Environment() string {
	if c.DistributedCI {
		return "ci"
	}
	return "local"
}
