// Package version reports the build version for startup logs and the
// health endpoint.
package version

import "runtime/debug"

const appName = "navigator"

// Commit is the short VCS revision embedded in the binary, or "dev"
// when build info is unavailable (e.g. `go test`, non-git builds).
var Commit = shortRevision()

func shortRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "navigator/<commit>" for logs and user-agent strings.
func Full() string {
	return appName + "/" + Commit
}
