package models

// MBar is the aggregation state of the currently open bar of one symbol.
// A trade with Timestamp <= BarEnd belongs to the bar.
type MBar struct {
	Symbol   Symbol  `json:"symbol"`
	Sequence uint64  `json:"bar_num"`
	BarStart uint64  `json:"bar_start"`
	BarEnd   uint64  `json:"bar_end"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`

	// Trades counts the trades applied to the bar. Zero means the bar was opened
	// by a rollover and still carries the inherited price.
	Trades uint64 `json:"trades"`
}

// -----------------------------------------------------------------------------

// SameFields reports whether every client-visible field of b equals the one of o.
func (b MBar) SameFields(o MBar) bool {
	return b.Sequence == o.Sequence &&
		b.Open == o.Open &&
		b.High == o.High &&
		b.Low == o.Low &&
		b.Close == o.Close &&
		b.Volume == o.Volume &&
		b.BarStart == o.BarStart &&
		b.BarEnd == o.BarEnd
}
