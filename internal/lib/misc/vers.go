package misc

import (
	"fmt"
	"runtime/debug"
	"slices"
)

// Version is replaced at build time w/ the release version.
// If not defined, we just return the git rev.
var Version string

func GetVersionInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "The version information could not be determined"
	}
	var vcsRev = "(unknown)"
	if fnd := slices.IndexFunc(info.Settings, func(v debug.BuildSetting) bool { return v.Key == "vcs.revision" }); fnd != -1 {
		vcsRev = info.Settings[fnd].Value
		if len(vcsRev) > 7 {
			vcsRev = vcsRev[0:7]
		}
	}
	if Version != "" {
		return fmt.Sprintf("%s [%s]", Version, vcsRev)
	}
	return vcsRev
}
