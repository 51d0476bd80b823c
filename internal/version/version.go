// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package version carries the build environment stamped at link time.
package version

// Build modes.
const (
	BuildModeRelease = "release"
	BuildModeStaging = "staging"
	BuildModeCanary  = "canary"
	BuildModeE2E     = "e2e-test"
)

var (
	// Version is the SDK version.
	// It should be populated by the build system (ldflags).
	Version = "v0.1.0-dev"

	// BuildMode is one of the BuildMode* constants.
	BuildMode = BuildModeRelease

	// Datacenter is the intake region the build targets.
	Datacenter = "us"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// BuildEnv describes the running build.
type BuildEnv struct {
	BuildMode  string `json:"build_mode"`
	Datacenter string `json:"datacenter"`
	SDKVersion string `json:"sdk_version"`
	Commit     string `json:"commit,omitempty"`
}

// Current returns the build environment of this binary.
func Current() BuildEnv {
	return BuildEnv{
		BuildMode:  BuildMode,
		Datacenter: Datacenter,
		SDKVersion: Version,
		Commit:     Commit,
	}
}

// IsDevelopment reports whether internal diagnostics should be verbose.
func (b BuildEnv) IsDevelopment() bool {
	return b.BuildMode == BuildModeE2E || b.BuildMode == BuildModeStaging
}
