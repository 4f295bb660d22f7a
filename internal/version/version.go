// Package version reports which build of newsbridge is running.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/newsbridge/internal/version.Version=1.0.0 ..."
//
// Builds without ldflags (go install, go run) fall back to the VCS stamp the
// toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

var (
	Version   = "dev"
	Commit    = ""
	Dirty     = ""
	BuildDate = ""
)

// Info is the build description printed by `newsbridge version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build description.
func Get() Info {
	once.Do(func() { info = resolve(Version, Commit, Dirty, BuildDate, debug.ReadBuildInfo) })
	return info
}

func resolve(ver, commit, dirty, date string, read func() (*debug.BuildInfo, bool)) Info {
	in := Info{
		Version:   ver,
		Commit:    commit,
		Dirty:     dirty == "true",
		BuildDate: date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := read()
	if !ok {
		return fill(in)
	}
	if in.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		in.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if in.Commit == "" {
				in.Commit = s.Value
			}
		case "vcs.time":
			if in.BuildDate == "" {
				in.BuildDate = s.Value
			}
		case "vcs.modified":
			if dirty == "" {
				in.Dirty = s.Value == "true"
			}
		}
	}
	return fill(in)
}

func fill(in Info) Info {
	if in.Commit == "" {
		in.Commit = "unknown"
	}
	if len(in.Commit) > 12 {
		in.Commit = in.Commit[:12]
	}
	if in.BuildDate == "" {
		in.BuildDate = "unknown"
	}
	return in
}

// String returns the version, marked when built from a modified tree.
func String() string {
	in := Get()
	if in.Dirty {
		return in.Version + "-dirty"
	}
	return in.Version
}

// UserAgent identifies newsbridge to the source site and the destination.
func UserAgent() string {
	return "newsbridge/" + String() + " (+https://github.com/jmylchreest/newsbridge)"
}

// Full returns the multi-line form.
func Full() string {
	in := Get()
	var sb strings.Builder
	fmt.Fprintf(&sb, "newsbridge %s\n", String())
	fmt.Fprintf(&sb, "  commit:  %s\n", in.Commit)
	fmt.Fprintf(&sb, "  built:   %s\n", in.BuildDate)
	fmt.Fprintf(&sb, "  go:      %s (%s)", in.GoVersion, in.Platform)
	return sb.String()
}
