// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the two serialization formats used by live
// sharing, with a clear boundary between them:
//
//   - The edit-log wire format: a compact binary encoding of
//     [value.Value] payloads and the scalars that edit records are built
//     from. Fixed-width scalars are copied in the writer's native byte
//     order and width. This is NOT a portable format: every process on
//     a bus must share the same architecture assumptions. Strings are a
//     u64 length followed by raw bytes; arrays are a u64 count followed
//     by the elements; a generic Value is an i32 kind discriminant
//     followed by the kind's payload.
//   - CBOR for protocol envelopes: the broker's sync-routing envelope
//     and anything else exchanged between the broker and its peers that
//     is not an edit record.
//
// # Edit-log format
//
// The kind table is an immutable [Registry] built once and passed into
// every [Writer] and [Reader]:
//
//	registry := codec.Standard()
//	w := codec.NewWriter(registry)
//	w.PutValue(value.Of(float32(5)))
//	r := codec.NewReader(registry, w.Bytes())
//	v, err := r.Value()
//
// Every read is bounds-checked. Truncated or malformed input returns a
// [*CorruptDataError], which matches [ErrCorruptData] under errors.Is.
// Array and dictionary counts are validated against the remaining
// buffer before any allocation, so a corrupt count cannot trigger a
// huge allocation.
//
// # CBOR
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
//
//	data, err := codec.Marshal(envelope)
//	err = codec.Unmarshal(data, &envelope)
//
// Types serialized only as CBOR use `cbor` struct tags.
package codec
