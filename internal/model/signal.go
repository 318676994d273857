package model

import "time"

// Direction is the directional bet for a binary window.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionHold Direction = "HOLD"
)

// Confidence is the discrete tier of factor agreement behind a signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Signal is the outcome of one evaluation tick: a directional vote with a
// confidence tier and the factors that aligned to produce it. Signals are
// produced fresh every tick and never mutated.
type Signal struct {
	Direction  Direction  `json:"direction"`
	Confidence Confidence `json:"confidence"`

	// Factors lists the names of the factors that voted for Direction.
	Factors []string `json:"contributing_factors"`

	// UpVotes/DownVotes/Abstained record the raw tally for audit logs.
	UpVotes   int `json:"up_votes"`
	DownVotes int `json:"down_votes"`
	Abstained int `json:"abstained"`

	Reasons []string `json:"reasons"` // human-readable rationale lines

	Features FeatureSnapshot `json:"features"`
	At       time.Time       `json:"at"`
}

// Actionable reports whether the signal is a directional vote strong enough
// to hand to the risk manager. LOW confidence is never tradeable.
func (s *Signal) Actionable() bool {
	return s.Direction != DirectionHold && s.Confidence != ConfidenceLow
}
