// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Identity tags every message a session publishes so the session can
// recognize its own messages when the broker echoes them back. The
// process id occupies the high 32 bits and a per-process counter the
// low 32 bits, so identities from different processes never collide.
type Identity uint64

// NewIdentity packs a process id and counter.
func NewIdentity(pid, counter uint32) Identity {
	return Identity(uint64(pid)<<32 | uint64(counter))
}

// PID returns the process id half of the identity.
func (i Identity) PID() uint32 { return uint32(i >> 32) }

// Counter returns the per-process counter half of the identity.
func (i Identity) Counter() uint32 { return uint32(i) }

func (i Identity) String() string {
	return fmt.Sprintf("%d.%d", i.PID(), i.Counter())
}

// IdentitySource hands out successive identities for one process id.
// It is safe for concurrent use.
type IdentitySource struct {
	pid     uint32
	counter atomic.Uint32
}

// NewIdentitySource returns a source for pid whose first identity has
// counter 1.
func NewIdentitySource(pid uint32) *IdentitySource {
	return &IdentitySource{pid: pid}
}

// Next returns the next identity. The counter wraps after 2^32 calls.
func (s *IdentitySource) Next() Identity {
	return NewIdentity(s.pid, s.counter.Add(1))
}

var processIdentities = NewIdentitySource(uint32(os.Getpid()))

// NextIdentity returns a fresh identity for the current process.
func NextIdentity() Identity { return processIdentities.Next() }
