package model

import (
	"encoding/json"
	"time"
)

// PriceSample is a single observation of the underlying asset price.
// Samples arrive in timestamp order (monotonic non-decreasing) and feed
// the rolling history the indicator engine reads from.
type PriceSample struct {
	TS     time.Time `json:"ts"`     // UTC observation time
	Price  float64   `json:"price"`  // underlying asset price in USD
	Volume float64   `json:"volume"` // traded volume for the sample interval, 0 if unknown
}

// JSON returns the JSON-encoded sample (ignoring errors for hot-path usage).
func (s *PriceSample) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
