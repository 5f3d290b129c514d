// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for components that wait: bus dial backoff
// and the broker's stats ticker. It also satisfies the Clock interface
// of github.com/cenkalti/backoff, so an ExponentialBackOff measures
// elapsed time against the same source it sleeps on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the specified interval. Panics if d <= 0. Equivalent to
	// time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks at a fixed interval. Create one with
// Clock.NewTicker.
type Ticker struct {
	// C delivers ticks. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks are sent after Stop
// returns; C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }
