// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use it for layer identifiers and
// payloads that must stay distinguishable when several sessions share
// one broker within a test binary.
//
//	id := testutil.UniqueID("scene")    // "scene-1", "scene-2", ...
//	note := testutil.UniqueID("from-b") // "from-b-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
