// Package version reports pacer's build metadata. The package variables are
// stamped at link time, e.g.
//
//	go build -ldflags "-X pacer/internal/version.Version=v1.4.0 \
//	  -X pacer/internal/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X pacer/internal/version.BuildDate=$(date -u +%FT%TZ)"
package version

import (
	"fmt"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

var (
	Version   = "unknown"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata plus the identity of this process. It is
// attached to every log record and exported as telemetry resource
// attributes.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var current = sync.OnceValue(func() Info {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		InstanceID: uuid.NewString(),
		Hostname:   host,
	}
})

// GetInfo returns this process's Info. The instance ID is generated once.
func GetInfo() Info {
	return current()
}

// Release reports whether Version is a tagged semantic version with no
// prerelease suffix.
func (i Info) Release() bool {
	v, err := semver.NewVersion(i.Version)
	return err == nil && v.Prerelease() == ""
}

func (i Info) String() string {
	s := fmt.Sprintf("pacer version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
	if !i.Release() {
		s += " [development build]"
	}
	return s
}
