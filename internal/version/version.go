// Package version provides build-time version information.
package version

import "fmt"

// Set at build time via -ldflags.
var (
	// Version is the semantic version.
	Version = "0.1.0"

	// BuildTime is the UTC time when the binary was built.
	BuildTime = "unknown"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"
)

// String renders the full version line the commands print for -version.
func String() string {
	return fmt.Sprintf("tileprep %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
