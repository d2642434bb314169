package models

// MEngineStatus is a point-in-time view of the aggregation engine, safe to hand
// to readers outside the engine worker.
type MEngineStatus struct {
	State   string `json:"state"`
	Symbols int    `json:"symbols"`
	Trades  uint64 `json:"trades"`
	Updates uint64 `json:"updates"`
}
