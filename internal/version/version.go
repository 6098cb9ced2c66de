// Package version holds build information set via -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build information for `mcuscope version`.
func String() string {
	return fmt.Sprintf("mcuscope %s (%s, built %s)", Version, GitSHA, BuildTime)
}
