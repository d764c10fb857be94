// Package version provides build metadata for the hubrag binary.
package version

import "fmt"

// Version is the current version of the application.
// This is set at build time using -ldflags.
var Version = "dev"

// Commit is the VCS revision the binary was built from.
var Commit = "none"

// BuildTime is when the binary was built.
// This is set at build time using -ldflags.
var BuildTime = "unknown"

// String returns the formatted version information.
func String() string {
	return fmt.Sprintf("hubrag version %s (commit %s, built %s)", Version, Commit, BuildTime)
}
