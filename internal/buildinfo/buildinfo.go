// Package buildinfo exposes the version and commit of the build, set at
// link-time, for the version subcommand and the run-start log line.
package buildinfo

import "fmt"

// Version is set at link-time with –ldflags.
var Version = "v0.1.0"

// Commit is set at link-time with –ldflags.
// Default is "unknown" so tests and "go run ." still work.
var Commit = "unknown"

// UserAgent names this build in diagnostics.
func UserAgent() string {
	return fmt.Sprintf("domain-email-records/%s (%s)", Version, Commit)
}
