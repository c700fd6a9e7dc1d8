// Package version holds build metadata injected at link time.
package version

// Set via -ldflags at build time, e.g.:
//
//	go build -ldflags "-X github.com/bookforge/abridge/version.GitRelease=v0.3.0"
var (
	GitRelease = "dev"
	GitCommit  = "unknown"
	BuildDate  = "unknown"
)
