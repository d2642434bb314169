package models

// MTrade is one normalized trade execution as produced by an ingestion source.
// Timestamp is expressed in the engine's timestamp units (see MEngineConfig.TimestampUnit).
type MTrade struct {
	Symbol    Symbol  `json:"symbol"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp uint64  `json:"timestamp"`
}
