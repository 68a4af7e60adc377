package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Product is the name used in the User-Agent header.
const Product = "asynchttp"

var (
	// These variables are set at build time using -ldflags
	Version   = "dev"
	GitCommit = ""
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
	IsDirty   bool   `json:"is_dirty"`
}

// Get returns the build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi.Settings)
	}
	return info
}

func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			info.IsDirty = s.Value == "true"
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
}

// Short returns version[-commit][-dirty].
func (i Info) Short() string {
	v := i.Version
	if i.GitCommit != "" {
		v += "-" + i.GitCommit
	}
	if i.IsDirty {
		v += "-dirty"
	}
	return v
}

// UserAgent returns the default User-Agent, e.g. "asynchttp/1.4.0 (go1.26.0)".
func UserAgent() string {
	return userAgent(Get())
}

func userAgent(i Info) string {
	return fmt.Sprintf("%s/%s (%s)", Product, i.Version, i.GoVersion)
}
