// Package version reports the build version of the automower binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/enicky/automower-ble/internal/version.Version=v0.3.0 \
//	                   -X github.com/enicky/automower-ble/internal/version.Commit=abc123"
//
// When unset they are filled from the VCS stamp in the build info, or fall
// back to "dev" and "unknown".
var (
	Version = ""
	Commit  = ""
)

// Info describes the running build
type Info struct {
	Version   string
	Commit    string
	GoVersion string
	Platform  string
}

var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the build information, resolving it on first use
func Get() Info {
	resolveOnce.Do(func() {
		resolved = resolve(Version, Commit)
	})
	return resolved
}

func resolve(version, commit string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(&info, bi)
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// applyBuildInfo fills empty fields from the module version and VCS stamp
func applyBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if info.Commit != "" {
		return
	}

	var revision string
	var dirty bool
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision == "" {
		return
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if dirty {
		revision += "-dirty"
	}
	info.Commit = revision
}

// String returns "v0.3.0 (commit: abc123, go1.24.0 linux/amd64)"
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, %s %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
}

// Full returns the full version string including commit
func Full() string {
	return Get().String()
}

// UserAgent identifies this build to the BLE bridge
func UserAgent() string {
	return "automower-ble/" + Get().Version
}
