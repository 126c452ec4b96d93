// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_OnlyLastRuns(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Unix(0, 0))
	d := New(400*time.Millisecond, clock)

	var ran []int
	for i := 1; i <= 3; i++ {
		i := i
		replaced := d.Trigger(func() { ran = append(ran, i) })
		assert.Equal(t, i > 1, replaced)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, ran, "nothing may run inside the quiet period")
	assert.True(t, d.Pending())

	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []int{3}, ran)
	assert.False(t, d.Pending())
}

func TestDebouncer_Cancel(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Unix(0, 0))
	d := New(time.Second, clock)

	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())

	clock.Advance(2 * time.Second)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, clock.Pending())
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Unix(0, 0))
	d := New(400*time.Millisecond, clock)

	var calls int
	d.Trigger(func() { calls++ })
	clock.Advance(time.Second)
	d.Trigger(func() { calls++ })
	clock.Advance(time.Second)

	assert.Equal(t, 2, calls)
}

func TestDebouncer_StaleFireIsDropped(t *testing.T) {
	t.Parallel()

	// A timer whose Stop loses the race still must not run its callback.
	clock := &racingClock{}
	d := New(time.Second, clock)

	var first, second bool
	d.Trigger(func() { first = true })
	d.Trigger(func() { second = true })

	clock.fireAll()
	assert.False(t, first)
	assert.True(t, second)
}

func TestDebouncer_RealClock(t *testing.T) {
	t.Parallel()

	d := New(10*time.Millisecond, nil)
	done := make(chan struct{})
	d.Trigger(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not run")
	}
	assert.Equal(t, 10*time.Millisecond, d.Delay())
}

// racingClock ignores Stop so every scheduled callback fires.
type racingClock struct {
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (c *racingClock) Now() time.Time { return time.Time{} }

func (c *racingClock) AfterFunc(_ time.Duration, fn func()) Timer {
	c.fns = append(c.fns, fn)
	return noopTimer{}
}

func (c *racingClock) fireAll() {
	for _, fn := range c.fns {
		fn()
	}
}
