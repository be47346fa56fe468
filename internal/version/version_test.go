package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestApplyBuildInfo(t *testing.T) {
	stamp := func(settings ...string) []debug.BuildSetting {
		var out []debug.BuildSetting
		for i := 0; i+1 < len(settings); i += 2 {
			out = append(out, debug.BuildSetting{Key: settings[i], Value: settings[i+1]})
		}
		return out
	}

	tests := []struct {
		name        string
		info        Info
		bi          debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "module version and revision",
			bi:          debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}, Settings: stamp("vcs.revision", "0123456789abcdef")},
			wantVersion: "v0.3.0",
			wantCommit:  "0123456",
		},
		{
			name:       "dirty tree",
			bi:         debug.BuildInfo{Settings: stamp("vcs.revision", "abcdef0123", "vcs.modified", "true")},
			wantCommit: "abcdef0-dirty",
		},
		{
			name: "devel build",
			bi:   debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
		},
		{
			name:        "ldflags win",
			info:        Info{Version: "v1.0.0", Commit: "feedbee"},
			bi:          debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}, Settings: stamp("vcs.revision", "0123456789")},
			wantVersion: "v1.0.0",
			wantCommit:  "feedbee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.info
			applyBuildInfo(&info, &tt.bi)
			if info.Version != tt.wantVersion || info.Commit != tt.wantCommit {
				t.Errorf("got %q/%q, want %q/%q", info.Version, info.Commit, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.GoVersion == "" {
		t.Errorf("Get() left fields empty: %+v", info)
	}
	if !strings.HasPrefix(UserAgent(), "automower-ble/") {
		t.Errorf("UserAgent() = %q", UserAgent())
	}
	if !strings.Contains(Full(), info.Commit) {
		t.Errorf("Full() = %q", Full())
	}
}
