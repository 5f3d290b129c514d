// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for live-share
// packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls.
// [Eventually] polls a condition for state that settles asynchronously,
// such as a session's counters after a broker round trip.
//
// [TransferDir] creates a transfer directory whose path fits in a
// catch-up reply, which t.TempDir() does not guarantee. [FreePort]
// reserves a loopback port number for tests that need a known-closed
// or late-bound port.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, such as distinct layer identifiers in one registry.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no live-share dependencies.
package testutil
