// Package version holds the build version, set at link time:
//
//	go build -ldflags "-X github.com/maxvaer/smugprobe/pkg/version.Version=v1.2.0"
package version

// Version is the smugprobe release, or "dev" for local builds.
var Version = "dev"
