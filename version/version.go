// Package version holds build-time version information.
package version

import "fmt"

// Set via -ldflags at build time. Defaults are for source builds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the full human-readable version string.
func String() string {
	return fmt.Sprintf("loreweave %s (%s, built %s)", Version, Commit, Date)
}
