// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network errors.
//
// [IsExpectedCloseError] recognizes the errors produced by ordinary
// connection teardown, so that long-running loops can exit quietly
// when a peer or the local side closes a connection instead of
// logging the close as a failure.
package netutil
