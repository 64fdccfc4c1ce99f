package watcher

import (
	"sync"
	"time"
)

// debouncer delays invocation of a function until a quiet period has
// elapsed, collapsing bursts of triggers into a single call.
type debouncer struct {
	duration time.Duration
	mu       sync.Mutex
	timer    *time.Timer
}

func newDebouncer(d time.Duration) *debouncer {
	return &debouncer{duration: d}
}

// Trigger schedules fn to run after the debounce duration. A trigger
// arriving before the timer fires resets it.
func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	if d.duration <= 0 {
		d.timer = nil
		go fn()
		return
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel stops any pending invocation.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
