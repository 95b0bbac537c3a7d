package wishlib

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of triggers into a single call of fn, made
// delay after the last trigger. fn runs on the timer goroutine.
type debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	// a later Trigger, Flush or Cancel superseded this timer
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a call is scheduled.
func (d *debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs fn immediately if a call is pending.
func (d *debouncer) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.cancelLocked()
	d.mu.Unlock()
	d.fn()
}

// Cancel drops the pending call, if any.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending call and ignores all later triggers.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *debouncer) cancelLocked() {
	d.gen++
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
