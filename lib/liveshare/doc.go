// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package liveshare keeps the layers of several processes in sync
// through a forwarding broker.
//
// A [Session] watches a layer.Registry. Every local mutation is staged
// as an edit record, and every change notice stages a transaction
// boundary. A publish goroutine sends staged records to the broker
// tagged with the session's [Identity]. A listen goroutine receives
// every peer's records, drops its own, and groups the rest into
// batches ending at a boundary. A serve goroutine answers catch-up
// requests from sessions that join later.
//
// Incoming batches are never applied on the network goroutines. They
// are queued as tasks that the goroutine owning the layers runs by
// calling [Session.Process] periodically; each batch is applied inside
// one Registry.ChangeBlock, so listeners see one notice per batch.
//
// When a session starts it first asks an existing peer for its
// transfer directory, loads the staged snapshots found there, and
// queues a task replacing the matching local layers with them, ahead
// of any incremental batch.
package liveshare
