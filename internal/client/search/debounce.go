package search

import (
	"sync"
	"time"
)

// Debouncer delays a call until no new call has arrived for the configured
// duration. Rapid successive calls reset the timer.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	running  sync.WaitGroup
}

func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn, replacing any call still waiting for its timer.
func (d *Debouncer) Debounce(fn func()) {
	d.DebounceThen(func() func() {
		fn()
		return nil
	})
}

// DebounceThen is Debounce for a call that returns a follow-up. The
// follow-up runs once the call no longer counts as started, so it may call
// Stop itself.
func (d *Debouncer) DebounceThen(fn func() (then func())) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	d.running.Add(1)
	d.timer = time.AfterFunc(d.duration, func() {
		then := d.call(fn)
		if then != nil {
			then()
		}
	})
}

func (d *Debouncer) call(fn func() func()) func() {
	defer d.running.Done()
	return fn()
}

// Cancel drops the pending call, if any. A call that already started keeps
// running.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Stop cancels the pending call and waits for a started one to return.
func (d *Debouncer) Stop() {
	d.Cancel()
	d.running.Wait()
}

func (d *Debouncer) stopLocked() {
	// a timer that already fired releases running from its own callback
	if d.timer != nil && d.timer.Stop() {
		d.running.Done()
	}
	d.timer = nil
}
