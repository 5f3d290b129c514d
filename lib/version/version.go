// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/binary"
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/opendcc/liveshare/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s)", Version, GitCommit, dirty)
}

// Full returns Info plus the Go version, platform, and byte order.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s (%s)",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH, ByteOrder())
}

// ByteOrder names the native byte order the edit-log encoding uses on
// this platform.
func ByteOrder() string {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return "little-endian"
	}
	return "big-endian"
}

// Print writes the binary name and Full to stdout for --version.
func Print(name string) {
	fmt.Printf("%s %s\n", name, Full())
}
