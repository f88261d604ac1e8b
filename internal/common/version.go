package common

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
)

// Build metadata set with -ldflags "-X github.com/bobmcallan/esgfolio/internal/common.Version=...".
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("esgfolio %s (build: %s, commit: %s)", b.Version, b.Build, b.Commit)
}

var (
	buildOnce sync.Once
	current   BuildInfo
)

// CurrentBuild returns the build info of this binary. Values set through
// ldflags win; the rest come from the module's embedded VCS stamp.
func CurrentBuild() BuildInfo {
	buildOnce.Do(func() {
		current = resolveBuild(BuildInfo{Version: Version, Build: Build, Commit: GitCommit}, debug.ReadBuildInfo)
	})
	return current
}

func resolveBuild(b BuildInfo, read func() (*debug.BuildInfo, bool)) BuildInfo {
	info, ok := read()
	if !ok || info == nil {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = strings.TrimPrefix(info.Main.Version, "v")
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" && s.Value != "" {
				b.Commit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if b.Build == "unknown" && s.Value != "" {
				b.Build = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" && !strings.HasSuffix(b.Commit, "-dirty") && b.Commit != "unknown" {
				b.Commit += "-dirty"
			}
		}
	}
	return b
}
