// Package version exposes build metadata for release-watcher.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// UserAgent renders the identifier sent with every forge request.
package version
