// Package actionagent turns a natural-language instruction into one call
// against a connected third-party app.
package actionagent

// Version information, overridden at build time with -ldflags "-X ...".
var (
	// Version is the release version
	Version = "development"

	// APIVersion is the HTTP API version
	APIVersion = "v1"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
