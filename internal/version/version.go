// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version carries the build identity injected via ldflags.
package version

import "fmt"

// Info contains build-time version information.
type Info struct {
	Version   string // semantic version from git tags, "dev" otherwise
	GitCommit string // short git commit hash
	BuildTime string // build timestamp in RFC 3339 format
}

// String renders the info the way the -version flag prints it.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildTime)
}
