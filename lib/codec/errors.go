// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
)

// ErrCorruptData is matched by every decode failure caused by
// truncated or malformed input.
var ErrCorruptData = errors.New("codec: corrupt data")

// CorruptDataError describes where and why decoding failed.
type CorruptDataError struct {
	// Offset is the reader position at which the failure was detected.
	Offset int
	// Want is the number of bytes the failing read needed. Zero when
	// the failure was not a short read.
	Want int
	// Remaining is the number of unread bytes at Offset.
	Remaining int
	// Reason describes the failure.
	Reason string
}

func (e *CorruptDataError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("codec: corrupt data at offset %d: %s (need %d bytes, %d remaining)",
			e.Offset, e.Reason, e.Want, e.Remaining)
	}
	return fmt.Sprintf("codec: corrupt data at offset %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrCorruptData) true for every
// CorruptDataError.
func (e *CorruptDataError) Is(target error) bool {
	return target == ErrCorruptData
}

// IsCorruptData reports whether err (or any error it wraps) is a
// decode failure.
func IsCorruptData(err error) bool {
	return errors.Is(err, ErrCorruptData)
}
