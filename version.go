package main

import (
	"runtime/debug"
	"strings"
)

// Overridden at link time:
//
//	go build -ldflags "-X main.buildVersion=v1.0.0 -X main.buildCommit=$(git rev-parse HEAD)"
var (
	buildVersion = "dev"
	buildCommit  = ""
)

// buildStamp is what the toolchain recorded about the binary.
type buildStamp struct {
	version  string // module version for `go install pkg@vX`; empty for local builds
	revision string
	modified bool
}

func versionString() string {
	return resolveVersion(buildVersion, buildCommit, readBuildStamp(debug.ReadBuildInfo))
}

// resolveVersion prefers linked values and falls back to the build stamp.
func resolveVersion(version, commit string, stamp buildStamp) string {
	v := strings.TrimSpace(version)
	if (v == "" || v == "dev") && stamp.version != "" {
		return stamp.version
	}

	dirty := false
	if shortCommit(commit) == "" {
		commit, dirty = stamp.revision, stamp.modified
	}
	s := formatVersion(v, commit)
	if dirty && strings.HasPrefix(s, "dev-") {
		s += "-dirty"
	}
	return s
}

func readBuildStamp(read func() (*debug.BuildInfo, bool)) buildStamp {
	info, ok := read()
	if !ok || info == nil {
		return buildStamp{}
	}
	var stamp buildStamp
	if v := info.Main.Version; v != "" && v != "(devel)" {
		stamp.version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			stamp.revision = s.Value
		case "vcs.modified":
			stamp.modified = s.Value == "true"
		}
	}
	return stamp
}

func formatVersion(version, commit string) string {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}
	if v != "dev" {
		return v
	}
	if c := shortCommit(commit); c != "" {
		return "dev-" + c
	}
	return "dev"
}

func shortCommit(commit string) string {
	c := strings.TrimSpace(commit)
	if c == "" || c == "unknown" {
		return ""
	}
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
