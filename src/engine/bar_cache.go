package engine

import (
	"math"
	"sort"

	"ohlc-streamer/src/models"
)

// barCache holds the single open bar of every symbol seen so far. It is owned
// by the engine worker and never shared.
type barCache struct {
	bars    map[models.Symbol]*models.MBar
	symbols []models.Symbol // sorted, for a stable TIME_ADVANCE order
}

func newBarCache() *barCache {
	return &barCache{bars: make(map[models.Symbol]*models.MBar)}
}

// -----------------------------------------------------------------------------

func (c *barCache) get(sym models.Symbol) (*models.MBar, bool) {
	bar, ok := c.bars[sym]
	return bar, ok
}

// -----------------------------------------------------------------------------

func (c *barCache) put(bar *models.MBar) {
	if _, exists := c.bars[bar.Symbol]; !exists {
		i := sort.Search(len(c.symbols), func(i int) bool { return c.symbols[i] >= bar.Symbol })
		c.symbols = append(c.symbols, "")
		copy(c.symbols[i+1:], c.symbols[i:])
		c.symbols[i] = bar.Symbol
	}
	c.bars[bar.Symbol] = bar
}

// -----------------------------------------------------------------------------

func (c *barCache) len() int {
	return len(c.bars)
}

// -----------------------------------------------------------------------------
// Bar arithmetic
// -----------------------------------------------------------------------------

// newBar opens bar #1 of a symbol at the trade's timestamp.
func newBar(t models.MTrade, interval uint64) *models.MBar {
	return &models.MBar{
		Symbol:   t.Symbol,
		Sequence: 1,
		BarStart: t.Timestamp,
		BarEnd:   endOf(t.Timestamp, interval),
		Open:     t.Price,
		High:     t.Price,
		Low:      t.Price,
		Close:    t.Price,
		Volume:   t.Quantity,
		Trades:   1,
	}
}

// -----------------------------------------------------------------------------

// applyTrade folds a trade into bar. The first trade of a bar opened by a
// rollover replaces the inherited prices.
func applyTrade(bar *models.MBar, t models.MTrade) {
	if bar.Trades == 0 {
		bar.Open = t.Price
		bar.High = t.Price
		bar.Low = t.Price
		bar.Close = t.Price
		bar.Volume = t.Quantity
		bar.Trades = 1
		return
	}

	if t.Price > bar.High {
		bar.High = t.Price
	}
	if t.Price < bar.Low {
		bar.Low = t.Price
	}
	bar.Close = t.Price
	bar.Volume += t.Quantity
	bar.Trades++
}

// -----------------------------------------------------------------------------

// advance replaces bar in place with its successor: next sequence, the next
// window, flat at the previous close and empty.
func advance(bar *models.MBar, interval uint64) {
	prevClose := bar.Close

	bar.Sequence++
	bar.BarStart = bar.BarEnd + 1
	bar.BarEnd = endOf(bar.BarStart, interval)
	bar.Open = prevClose
	bar.High = prevClose
	bar.Low = prevClose
	bar.Close = prevClose
	bar.Volume = 0
	bar.Trades = 0
}

// -----------------------------------------------------------------------------

// barsToClose returns how many bars must close before a bar ending at barEnd
// is followed by one that contains ts. Consecutive bars are interval+1 units apart.
func barsToClose(barEnd, ts, interval uint64) uint64 {
	if ts <= barEnd {
		return 0
	}
	step := interval + 1
	gap := ts - barEnd
	n := gap / step
	if gap%step != 0 {
		n++
	}
	return n
}

// endOf is start+interval, saturated at the largest timestamp.
func endOf(start, interval uint64) uint64 {
	if start > math.MaxUint64-interval {
		return math.MaxUint64
	}
	return start + interval
}
