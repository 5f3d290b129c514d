// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer manages the transfer directory a session exposes to
// peers that join after it: layer snapshots plus a manifest mapping each
// layer identifier to its snapshot file.
//
// The responder side calls [Stage] to export its dirty layers. The
// requester side calls [Load] with the directory path it received over
// the sync channel and gets back standalone layers ready to be
// transferred into its own registry on the owning goroutine.
package transfer
