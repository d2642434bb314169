package utils

import "time"

// IdleTimer bounds how long a worker loop waits for input. A zero duration
// disables it.
type IdleTimer struct {
	d time.Duration
	t *time.Timer
}

// -----------------------------------------------------------------------------

func NewIdleTimer(d time.Duration) *IdleTimer {
	it := &IdleTimer{d: d}
	if d > 0 {
		it.t = time.NewTimer(d)
	}
	return it
}

// -----------------------------------------------------------------------------

// C returns the expiry channel; nil (never ready) when disabled.
func (it *IdleTimer) C() <-chan time.Time {
	if it.t == nil {
		return nil
	}
	return it.t.C
}

// -----------------------------------------------------------------------------

func (it *IdleTimer) Reset() {
	if it.t != nil {
		it.t.Reset(it.d)
	}
}

// -----------------------------------------------------------------------------

func (it *IdleTimer) Stop() {
	if it.t != nil {
		it.t.Stop()
	}
}
