// Package version provides the procctl version strings.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

// buildVersion can be set at compile time with:
//
//	go build -ldflags "-X github.com/buildkite/procctl/version.buildVersion=abc" .

//go:embed VERSION
var baseVersion string
var buildVersion string

func Version() string {
	return strings.TrimSpace(baseVersion)
}

func BuildVersion() string {
	if buildVersion == "" {
		return "x"
	}
	return buildVersion
}

// FullVersion is the version as shown by --version.
func FullVersion() string {
	return Version() + "+" + BuildVersion()
}

func UserAgent() string {
	return "procctl/" + Version() + "." + BuildVersion() + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}
