// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package debounce provides a cancel-and-reschedule timer: each Trigger
// replaces the pending callback, so only the last call inside the quiet
// period runs.
package debounce

import (
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. RealClock uses the time package; tests use
// FakeClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer runs at most one callback per quiet period.
type Debouncer struct {
	mu    sync.Mutex
	clock Clock
	delay time.Duration

	timer Timer
	seq   uint64
}

// New creates a Debouncer. A nil clock means RealClock.
func New(delay time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = RealClock{}
	}
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Trigger schedules fn after the delay, cancelling any callback still
// pending. It reports whether a pending callback was replaced.
//
// A callback whose timer already fired but has not yet acquired the lock is
// also superseded: it observes a newer sequence number and returns without
// running.
func (d *Debouncer) Trigger(fn func()) (replaced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		replaced = true
	}
	d.seq++
	mine := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != mine {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	return replaced
}

// Cancel drops the pending callback, if any, and reports whether one was
// pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether a callback is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
