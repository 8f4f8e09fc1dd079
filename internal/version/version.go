// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/remindchat/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/remindchat/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/remindchat/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Binaries installed with "go install" carry no ldflags; Resolve falls back
// to the module version and VCS stamp recorded by the toolchain.
package version

import (
	"runtime"
	"runtime/debug"
)

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Resolve returns the build info, filling unset ldflags from the embedded
// module build info when available.
func Resolve() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fill(info, bi)
}

func fill(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// String returns a formatted version string.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ") built " + i.BuildTime + " with " + i.GoVersion
}

// String returns the formatted version of the running binary.
func String() string {
	return Resolve().String()
}
