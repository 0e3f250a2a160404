package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the quiet period used when none is given.
const DefaultDebounceDuration = 500 * time.Millisecond

// Debouncer runs the most recently triggered function once no new trigger
// has arrived for the debounce window (trailing edge). Every trigger
// replaces the pending function and restarts the timer.
type Debouncer struct {
	duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewDebouncer returns a Debouncer with window d, or DefaultDebounceDuration
// when d is not positive.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Duration returns the default window.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// Trigger schedules fn after the default window.
func (d *Debouncer) Trigger(fn func()) {
	d.TriggerAfter(d.duration, fn)
}

// TriggerAfter schedules fn after window, replacing whatever was pending.
func (d *Debouncer) TriggerAfter(window time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(window, func() {
		d.mu.Lock()
		current := seq == d.seq
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		// A timer that fired while a newer trigger was being registered
		// must not run.
		if current {
			fn()
		}
	})
}

// Pending reports whether a function is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops the pending function, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}
