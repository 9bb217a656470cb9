// Package version exposes build metadata for the sos-responder binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Short and Full render the version for CLI output, KV for structured logs.
package version
