package engine

import "time"

// MarketGate reports whether any tracked market is trading.
type MarketGate interface {
	AnyMarketOpen() bool
}

// Heartbeat derives TIME_ADVANCE timestamps from the wall clock, so idle bars
// close even when no trade of any symbol arrives. It only ticks while the gate
// reports an open market; a nil gate always ticks.
type Heartbeat struct {
	gate MarketGate
	unit time.Duration
	now  func() time.Time
}

func NewHeartbeat(gate MarketGate, unit time.Duration) *Heartbeat {
	if unit <= 0 {
		unit = time.Millisecond
	}
	return &Heartbeat{gate: gate, unit: unit, now: time.Now}
}

// Tick returns the current time in timestamp units, or false when all markets are closed.
func (h *Heartbeat) Tick() (uint64, bool) {
	if h.gate != nil && !h.gate.AnyMarketOpen() {
		return 0, false
	}
	ns := h.now().UnixNano()
	if ns < 0 {
		return 0, false
	}
	return uint64(ns / int64(h.unit)), true
}
