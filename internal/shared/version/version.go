// Package version reports the build version of the binary.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/relaygate/relaygate/internal/shared/version.Version=v1.4.0"
var Version = "dev"

// Normalize ensures version string has "v" prefix for semver compatibility.
// Examples: "1.2.3" -> "v1.2.3", "v1.2.3" -> "v1.2.3"
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// String returns the canonical build version, or "dev" for untagged builds.
func String() string {
	v := Normalize(Version)
	if !semver.IsValid(v) {
		return "dev"
	}
	return semver.Canonical(v)
}

// IsRelease reports whether the binary was built from a release tag.
func IsRelease() bool {
	v := Normalize(Version)
	return semver.IsValid(v) && semver.Prerelease(v) == ""
}
