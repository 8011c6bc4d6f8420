// Package debounce provides timer-cancellation debouncing for burst signals.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid trigger requests into a single callback.
// Each Trigger resets the pending timer, so only one callback is ever
// pending at a time.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

// New creates a new debouncer with the specified coalescing window.
func New(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
	}
}

// Trigger executes the function after the debounce duration has elapsed
// without any new calls. Rapid successive calls reset the timer.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel cancels any pending debounced function call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Flush executes the function immediately and cancels any pending call.
func (d *Debouncer) Flush(fn func()) {
	d.Cancel()
	fn()
}
