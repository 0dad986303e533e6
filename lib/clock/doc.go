// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the dashboard engine.
//
// Date buckets, store-assigned update times, and change polling all
// read time through a Clock. Production wiring passes Real(); tests
// pass Fake() and move time forward explicitly with Advance:
//
//	c := clock.Fake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
//	store := memstore.New(memstore.Options{Clock: c})
//	c.Advance(24 * time.Hour) // every bug due yesterday is now overdue
//
// Goroutines that wait on a fake ticker register with the clock before
// blocking. WaitForTimers blocks until that registration has happened
// so a test never advances time before the waiter exists.
package clock
