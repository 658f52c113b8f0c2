package orchestrator

import (
	"sync"
	"time"
)

// cycleTimer schedules the next cycle with a single-shot deferred
// callback. At most one timer is pending at any instant; arming a new one
// replaces the old.
type cycleTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Schedule arms the timer after cancelling any pending one and returns
// the wall-clock time the callback fires at.
func (t *cycleTimer) Schedule(delay time.Duration, cb func()) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		cb()
	})
	return time.Now().Add(delay)
}

// Cancel clears any pending timer. Idempotent.
func (t *cycleTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether a timer is armed.
func (t *cycleTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
