// Package build exposes build-time metadata injected via ldflags.
package build

import "fmt"

// Version, Commit, and Branch are set at build time by:
//
//	-ldflags "-X github.com/nekidev/nekos-api/internal/build.Version=... ..."
var (
	Version = "dev"
	Commit  = "unknown"
	Branch  = "unknown"
)

// String formats the build metadata for `nekos-api version`.
func String() string {
	return fmt.Sprintf("nekos-api %s (commit %s, branch %s)", Version, Commit, Branch)
}
