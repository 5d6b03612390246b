// Package build reports the binary's version. Values are injected via
// ldflags by release builds:
//
//	go build -ldflags "-X github.com/canvasflow/canvasflow/cmd/canvasflow/internal/build.Version=v1.0.0 \
//	  -X github.com/canvasflow/canvasflow/cmd/canvasflow/internal/build.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/canvasflow/canvasflow/cmd/canvasflow/internal/build.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Plain `go build` and `go install` binaries fall back to the VCS metadata
// the toolchain embeds, so --version stays useful without a release script.
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the human-readable version line printed by the version
// command.
func String() string {
	version, commit, date := Version, Commit, Date
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "unknown" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			case "vcs.time":
				if date == "unknown" && s.Value != "" {
					date = s.Value
				}
			}
		}
	}
	return fmt.Sprintf("canvasflow %s (%s) built %s %s/%s",
		version, commit, date, runtime.GOOS, runtime.GOARCH)
}
