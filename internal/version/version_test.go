package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func buildInfo(version string, settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: version}, Settings: settings}, true
	}
}

func TestResolve(t *testing.T) {
	vcs := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2024-03-01T09:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	tests := []struct {
		name                        string
		ver, commit, dirty, date    string
		read                        func() (*debug.BuildInfo, bool)
		wantVer, wantCommit, wantAt string
		wantDirty                   bool
	}{
		{
			name: "ldflags win",
			ver:  "1.2.0", commit: "abc", dirty: "false", date: "2024-01-01",
			read:    buildInfo("v9.9.9", vcs...),
			wantVer: "1.2.0", wantCommit: "abc", wantAt: "2024-01-01",
		},
		{
			name: "vcs stamp fills gaps",
			ver:  "dev",
			read: buildInfo("(devel)", vcs...),
			// commit is shortened
			wantVer: "dev", wantCommit: "0123456789ab", wantAt: "2024-03-01T09:00:00Z", wantDirty: true,
		},
		{
			name:    "module version from go install",
			ver:     "dev",
			read:    buildInfo("v0.4.1"),
			wantVer: "0.4.1", wantCommit: "unknown", wantAt: "unknown",
		},
		{
			name:    "no build info",
			ver:     "dev",
			read:    func() (*debug.BuildInfo, bool) { return nil, false },
			wantVer: "dev", wantCommit: "unknown", wantAt: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.ver, tt.commit, tt.dirty, tt.date, tt.read)
			if got.Version != tt.wantVer || got.Commit != tt.wantCommit || got.BuildDate != tt.wantAt || got.Dirty != tt.wantDirty {
				t.Errorf("resolve() = %+v", got)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "newsbridge/") {
		t.Errorf("UserAgent() = %q", ua)
	}
	if !strings.HasPrefix(Full(), "newsbridge ") {
		t.Errorf("Full() = %q", Full())
	}
}
