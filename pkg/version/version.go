// Package version carries build information stamped in with -ldflags.
package version

import "fmt"

// Set by the linker: -X github.com/ajitpratap0/streametl/pkg/version.Version=...
var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// UserAgent is sent by network extractors.
func UserAgent() string {
	return fmt.Sprintf("etl/%s", Version)
}
