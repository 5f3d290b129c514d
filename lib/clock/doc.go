// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Components that wait accept a Clock instead of calling time.Now,
// time.After, or time.NewTicker directly. In production, Real()
// provides the standard library behavior. In tests, Fake() provides a
// deterministic clock that advances only when Advance is called.
//
// # Wiring Pattern
//
// Take a Clock in the component's options and default it to Real:
//
//	if options.Clock == nil {
//	    options.Clock = clock.Real()
//	}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	b := broker.New(broker.Config{Clock: c, StatsInterval: time.Minute})
//	// ... start goroutines ...
//	c.WaitForTimers(1)        // wait for the ticker to register
//	c.Advance(time.Minute)    // fire it deterministically
//
// # FakeClock Synchronization
//
// When a goroutine calls After or NewTicker on a FakeClock, it
// registers a pending waiter. Use WaitForTimers to block until a
// specific number of waiters are registered before calling Advance.
// This eliminates the race between registration and time advancement
// that plagues tests using time.Sleep for synchronization.
package clock
