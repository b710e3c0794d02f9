// Package version reports the dbpool build version.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/dbpool/version.Version=1.0.0 \
//	    -X github.com/go-i2p/dbpool/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Other builds fall back to the module version and VCS revision embedded by
// the Go toolchain.
package version

import (
	"runtime/debug"
)

// Version is the software version.
var Version = "dev"

// GitCommit is the short commit hash.
var GitCommit = ""

// BuildTime is when the binary was built, RFC 3339.
var BuildTime = ""

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Full returns the version with commit and build time when known.
func Full() string {
	v, commit, built := Version, GitCommit, BuildTime
	if v == "dev" || commit == "" {
		mv, rev, at := fromBuildInfo()
		if v == "dev" && mv != "" {
			v = mv
		}
		if commit == "" {
			commit = rev
		}
		if built == "" {
			built = at
		}
	}

	if commit != "" {
		v += "-" + commit
	}
	if built != "" {
		v += " (" + built + ")"
	}
	return v
}

// fromBuildInfo returns the main module version and the VCS revision and
// time recorded by the toolchain.
func fromBuildInfo() (version, revision, at string) {
	info, ok := readBuildInfo()
	if !ok {
		return "", "", ""
	}
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		version = mv
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.time":
			at = s.Value
		}
	}
	return version, revision, at
}
