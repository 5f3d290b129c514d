// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"os"
	"testing"
)

// maxTransferPath is the longest transfer directory path a catch-up
// reply can carry.
const maxTransferPath = 255

// TransferDir creates a temporary transfer directory with a short path.
//
// Catch-up replies carry the directory path in at most 255 bytes.
// TMPDIR and t.TempDir() can be nested deeply enough under some test
// runners to exceed that, so the directory is created with a short name
// directly in the system temporary directory, falling back to /tmp.
//
// The directory is automatically removed when the test completes.
func TransferDir(t *testing.T) string {
	t.Helper()
	parent := os.TempDir()
	if len(parent) > maxTransferPath/2 {
		parent = "/tmp"
	}
	directory, err := os.MkdirTemp(parent, "ls-*")
	if err != nil {
		t.Fatalf("creating transfer directory: %v", err)
	}
	if len(directory) > maxTransferPath {
		t.Fatalf("transfer directory %q exceeds %d bytes", directory, maxTransferPath)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// FreePort returns a loopback TCP port that was free when checked. The
// port is released before returning, so nothing is listening on it;
// another process could claim it, which tests must tolerate.
func FreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving loopback port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		t.Fatalf("releasing loopback port: %v", err)
	}
	return port
}
