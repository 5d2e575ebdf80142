// Package version identifies the running build. The same identity is
// reported on /api/version and sent as the client name in play queue frames.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Build identity, overridable with
// -ldflags "-X github.com/edumarques81/stellar-queue/internal/version.Version=...".
var (
	Name      = "Stellar Queue"
	Version   = "0.3.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is the build identity of this binary.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the build identity. Without ldflags the commit and time
// fall back to the VCS stamp the toolchain embeds.
func GetInfo() Info {
	info := Info{Name: Name, Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}
	if info.GitCommit != "" && info.BuildTime != "" {
		return info
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.GitCommit == "":
			info.GitCommit = s.Value
		case s.Key == "vcs.time" && info.BuildTime == "":
			info.BuildTime = s.Value
		}
	}
	return info
}

// Client returns the identifier sent as "client" in play queue frames.
func (i Info) Client() string {
	return i.Name + " " + i.Version
}

// String renders "Name Version (commit abcdef0, built T)", omitting the
// parenthesized part when neither is known.
func (i Info) String() string {
	var extra []string
	if i.GitCommit != "" {
		extra = append(extra, "commit "+i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		extra = append(extra, "built "+i.BuildTime)
	}
	if len(extra) == 0 {
		return i.Client()
	}
	return fmt.Sprintf("%s (%s)", i.Client(), strings.Join(extra, ", "))
}
