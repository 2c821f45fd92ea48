// Package version reports build information for nescore
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
)

// Name is the program name used in version output and window titles
const Name = "nescore"

// Set at build time with -ldflags "-X nescore/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

// GetBuildInfo merges the link-time variables with the VCS stamp Go embeds
func GetBuildInfo() BuildInfo {
	bi := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if bi.GitCommit == "unknown" {
					bi.GitCommit = setting.Value
				}
			case "vcs.time":
				if bi.BuildTime == "unknown" {
					bi.BuildTime = setting.Value
				}
			case "vcs.modified":
				bi.Modified = setting.Value == "true"
			}
		}
	}
	return bi
}

// GetVersion returns the short version, e.g. "v1.2.0" or "dev-1a2b3c4"
func GetVersion() string {
	return GetBuildInfo().short()
}

func (bi BuildInfo) short() string {
	if bi.Version != "dev" {
		return bi.Version
	}
	v := "dev"
	if bi.GitCommit != "unknown" && len(bi.GitCommit) >= 7 {
		v += "-" + bi.GitCommit[:7]
	}
	if bi.Modified {
		v += "+dirty"
	}
	return v
}

// GetDetailedVersion returns a one-line description of the build
func GetDetailedVersion() string {
	bi := GetBuildInfo()
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s", Name, bi.short())
	if bi.BuildTime != "unknown" {
		fmt.Fprintf(&b, " built %s", bi.BuildTime)
	}
	fmt.Fprintf(&b, " with %s for %s/%s", bi.GoVersion, bi.Platform, bi.Arch)
	return b.String()
}

// PrintBuildInfo writes formatted build information to w
func PrintBuildInfo(w io.Writer) {
	bi := GetBuildInfo()
	fmt.Fprintf(w, "%s - NES emulator core\n", Name)
	fmt.Fprintf(w, "Version:     %s\n", bi.short())
	fmt.Fprintf(w, "Git Commit:  %s\n", bi.GitCommit)
	fmt.Fprintf(w, "Build Time:  %s\n", bi.BuildTime)
	fmt.Fprintf(w, "Go Version:  %s\n", bi.GoVersion)
	fmt.Fprintf(w, "Platform:    %s/%s\n", bi.Platform, bi.Arch)
}
