// Package debounce schedules a callback that runs once after activity settles.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once delay has passed since the last Trigger. A Trigger
// inside the window cancels the pending run and schedules a new one.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a Debouncer. A non-positive delay runs fn on the next Trigger
// without waiting, on its own goroutine.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn, superseding any pending run.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A newer Trigger or Stop replaced this timer after it fired.
		current := d.timer == timer && !d.stopped
		if current {
			d.timer = nil
		}
		d.mu.Unlock()

		if current {
			d.fn()
		}
	})
	d.timer = timer
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending run and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
