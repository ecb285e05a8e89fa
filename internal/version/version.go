// SPDX-License-Identifier: MIT

// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release version of the build.
	Version = "v0.1.0-dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String formats the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
