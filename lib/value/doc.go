// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package value defines the tagged value type carried by live-share edit
// records.
//
// A [Value] holds exactly one concrete payload identified by a [Kind].
// The kind set is closed: 58 kinds covering scalars, strings, tokens,
// asset paths, vectors, quaternions, matrices, dictionaries, list
// operations, references and payloads, scene-description enumerations,
// the value-block erasure marker, a nested-value wrapper, and the empty
// (void) value. Kind numbers are wire discriminants and never change;
// see kind.go for the table.
//
// Kinds whose [Kind.SupportsArray] reports true may also be held as a
// homogeneous array, represented in Go as a slice of the element type
// ([]float32 for a float array, []Token for a token array, and so on).
// Types that are inherently sequences (PathVector, TokenVector,
// DoubleVector, StringVector, LayerOffsetVector) are distinct named
// slice types so they never collide with array forms.
//
// Construct values with [Of] (panics on unsupported Go types) or [New]
// (returns an error). Read them back with [Get]. Compare with [Equal],
// which treats nil and empty collections as equal so that decoded values
// compare equal to the values that were encoded.
//
// Encoding lives in lib/codec. This package has no wire knowledge beyond
// the kind numbering.
package value
