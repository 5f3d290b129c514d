// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package layer implements the shared document that live sharing keeps
// in sync: an in-memory hierarchy of specs addressed by [value.Path],
// each holding named fields and time samples.
//
// A [Layer] exposes exactly the primitive mutation set that edit
// records describe (it satisfies edit.Target), so applying a remote
// record and performing a local edit go through the same code. A
// [Registry] holds the layers open in a process and reports every
// mutation twice:
//
//   - to interceptors, as an edit.Record, the moment it happens;
//   - to change listeners, as a [Notice], once per mutation or once per
//     outermost [Registry.ChangeBlock].
//
// Layers are not thread-safe. The owning goroutine performs every
// mutation; other goroutines hand work to it rather than touching a
// layer directly.
//
// Snapshots serialize a layer's content as the records produced by
// [Layer.Enumerate], optionally compressed with zstd or LZ4. They are
// the files a session stages for peers that join late.
package layer
