package websmith

import (
	"fmt"
	"runtime"
)

// Build metadata, overridable with -ldflags "-X".
var (
	Version   = "v0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// BuildInfo returns the build metadata.
func BuildInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// GetVersion returns a human-readable version string.
func GetVersion() string {
	info := BuildInfo()
	return fmt.Sprintf("websmith %s (commit: %s, built: %s, go: %s)",
		info.Version, info.GitCommit, info.BuildDate, info.GoVersion)
}
