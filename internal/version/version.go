// Package version holds build metadata injected via ldflags.
package version

import "runtime/debug"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the version and commit. Values not injected via ldflags fall back
// to the module build info recorded by `go build`.
func Resolve() (version, commit string) {
	info, _ := debug.ReadBuildInfo()
	return resolve(Version, Commit, info)
}

func resolve(version, commit string, info *debug.BuildInfo) (string, string) {
	if info == nil {
		return version, commit
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == "unknown" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				commit = s.Value
			}
		}
	}
	return version, commit
}
