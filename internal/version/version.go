// Package version provides build version information.
package version

import "fmt"

var (
	// version is the semantic version (injected at build time via -ldflags)
	version = "dev"
	// commit is the git commit hash (injected at build time via -ldflags)
	commit = "none"
	// date is the build date (injected at build time via -ldflags)
	date = "unknown"
)

// Info is the build metadata written to the log at startup.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// Get returns the build metadata.
func Get() Info {
	return Info{Version: version, Commit: commit, Date: date}
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}

// String formats the metadata as "<version> (commit: <commit>, built: <date>)".
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}

// IsRelease reports whether the binary was built with a real version.
func (i Info) IsRelease() bool {
	return i.Version != "dev"
}
