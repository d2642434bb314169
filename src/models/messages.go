package models

// -----------------------------------------------------------------------------
// Wire messages (flat key/value JSON objects)
// -----------------------------------------------------------------------------

const (
	EventSubscribe     = "subscribe"
	EventOHLCNotify    = "ohlc_notify"
	EventSubscriptions = "subscriptions"
)

// MSubscribeRequest is the inbound client request.
type MSubscribeRequest struct {
	Event    string `json:"event"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// MBarNotify is the outbound bar push. Field order is the wire order.
type MBarNotify struct {
	Event  string  `json:"event"`
	Symbol string  `json:"symbol"`
	BarNum uint64  `json:"bar_num"`
	Open   float64 `json:"O"`
	High   float64 `json:"H"`
	Low    float64 `json:"L"`
	Close  float64 `json:"C"`
	Volume float64 `json:"volume"`
}

// MSubscriptionList answers a client request with the client's full subscription set.
type MSubscriptionList struct {
	Event   string   `json:"event"`
	Symbols []string `json:"symbols"`
}

// -----------------------------------------------------------------------------
// Transport events delivered to the hub
// -----------------------------------------------------------------------------

type MClientEventType uint8

const (
	ClientConnected MClientEventType = iota + 1
	ClientDisconnected
	ClientMessage
)

// MClientEvent is a connect, disconnect or inbound text notification for one client.
type MClientEvent struct {
	Type     MClientEventType
	ClientID string
	Text     string
}
