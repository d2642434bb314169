package models

// MUpdateKind tells why a bar update was emitted.
type MUpdateKind uint8

const (
	KindTradeUpdate MUpdateKind = iota + 1
	KindPeriodClose
	KindTimerClose
)

func (k MUpdateKind) String() string {
	switch k {
	case KindTradeUpdate:
		return "TRADE_UPDATE"
	case KindPeriodClose:
		return "PERIOD_CLOSE"
	case KindTimerClose:
		return "TIMER_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// IsClose reports whether the kind carries a final bar.
func (k MUpdateKind) IsClose() bool {
	return k == KindPeriodClose || k == KindTimerClose
}

// -----------------------------------------------------------------------------

// MBarUpdate is emitted by the engine on every visible bar change.
// For non-closing kinds Bar.Close is 0 because the close is not final yet.
type MBarUpdate struct {
	Symbol Symbol      `json:"symbol"`
	Bar    MBar        `json:"bar"`
	Kind   MUpdateKind `json:"kind"`
}
