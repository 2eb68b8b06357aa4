// Package version carries build metadata, set with -ldflags -X at release.
package version

import "fmt"

var (
	// Version is the release version of slamviewer.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Summary formats the build metadata for logs and -version.
func Summary() string {
	return fmt.Sprintf("slamviewer %s (%s, built %s)", Version, GitSHA, BuildTime)
}
