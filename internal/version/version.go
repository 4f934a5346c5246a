// Package version carries build metadata injected with -ldflags:
//
//	-X yt-resolver/internal/version.Value=v1.2.0
//	-X yt-resolver/internal/version.Commit=abc123
//	-X yt-resolver/internal/version.BuildDate=2026-01-02
package version

var (
	Value     = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
