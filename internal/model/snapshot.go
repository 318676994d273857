package model

import "time"

// Momentum classification over the trailing lookback.
type Momentum string

const (
	MomentumUp   Momentum = "UP"
	MomentumDown Momentum = "DOWN"
	MomentumFlat Momentum = "FLAT"
)

// FeatureSnapshot holds the indicator values computed for one evaluation
// tick. It is immutable once computed. Each value carries its own validity:
// insufficient history is reported explicitly, never coerced to a neutral
// number (an undefined RSI is not 50).
type FeatureSnapshot struct {
	Price float64 `json:"price"` // latest sample price

	RSI      float64 `json:"rsi"`
	RSIValid bool    `json:"rsi_valid"`

	VWAPDeviationPct float64 `json:"vwap_deviation_pct"`
	VWAPValid        bool    `json:"vwap_valid"`

	MomentumPct      float64  `json:"momentum_pct"` // trailing 60s change in %
	Momentum         Momentum `json:"momentum_direction"`
	MomentumValid    bool     `json:"momentum_valid"`

	DataPoints int       `json:"data_points"` // samples backing this snapshot
	ComputedAt time.Time `json:"computed_at"`
}
