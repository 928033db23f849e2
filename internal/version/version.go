// Package version carries build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/mateo/envoy/internal/version.Version=$(git describe)"
package version

// Version is the release version; GitCommit the short SHA of the build.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
)

// Info returns the string printed by --version.
func Info() string {
	if GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
