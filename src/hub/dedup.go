package hub

import "ohlc-streamer/src/models"

// dedupCache remembers the last bar pushed per symbol so identical snapshots
// are sent once.
type dedupCache struct {
	last map[models.Symbol]models.MBar
}

func newDedupCache() *dedupCache {
	return &dedupCache{last: make(map[models.Symbol]models.MBar)}
}

// pass reports whether u differs from the last pushed snapshot of its symbol
// and, if so, records it. A dropped update leaves the cache untouched.
func (d *dedupCache) pass(u models.MBarUpdate) bool {
	if prev, ok := d.last[u.Symbol]; ok && prev.SameFields(u.Bar) {
		return false
	}
	d.last[u.Symbol] = u.Bar
	return true
}
