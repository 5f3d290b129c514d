// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package edit defines the closed set of primitive layer mutations that
// travel over the live-share bus.
//
// A [Record] is one of nine variants: eight mutations ([SetField],
// [SetFieldDictValueByKey], [SetTimeSample], [CreateSpec],
// [DeleteSpec], [MoveSpec], [PushChild], [PopChild]) and the
// [TransactionBoundary] marker that delimits a batch which must be
// applied atomically. Every mutation names the layer it targets; the
// boundary carries nothing.
//
// Records are immutable once built. On the wire a record is a u64 type
// discriminant, the variant's fields in a fixed order, and (for
// mutations) the layer identifier last:
//
//	data, err := edit.Encode(codec.Standard(), record)
//	record, err := edit.Decode(codec.Standard(), data)
//
// An unknown discriminant yields [ErrUnknownType] and no record.
// Truncated input and trailing bytes yield codec.ErrCorruptData.
//
// [Record.Apply] re-issues the mutation against a [Target], which is
// how a remote edit becomes a local one.
package edit
