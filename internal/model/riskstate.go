package model

import "time"

// RiskState is the process-lifetime risk ledger. It is owned exclusively by
// the risk manager: no other component mutates it or decides to trade.
// Daily fields reset at the UTC day boundary.
type RiskState struct {
	DailyStartBalance int64 `json:"daily_start_balance"` // cents
	CurrentBalance    int64 `json:"current_balance"`     // cents

	ConsecutiveWins   int `json:"consecutive_wins"`
	ConsecutiveLosses int `json:"consecutive_losses"`
	TradesToday       int `json:"trades_today"`

	// SizeMultiplier scales the base position size. It stays within the
	// configured [min, max] band and moves only on streak transitions.
	SizeMultiplier float64 `json:"size_multiplier"`

	// HaltedUntil is zero when trading is not halted.
	HaltedUntil time.Time `json:"halted_until,omitempty"`
	HaltReason  string    `json:"halt_reason,omitempty"`

	Day time.Time `json:"day"` // UTC midnight of the current trading day
}

// Halted reports whether a halt is in effect at time now.
func (s *RiskState) Halted(now time.Time) bool {
	return !s.HaltedUntil.IsZero() && now.Before(s.HaltedUntil)
}

// DailyDrawdownPct returns the decline from the day's starting balance as a
// fraction in [0,1]. A growing balance yields 0.
func (s *RiskState) DailyDrawdownPct() float64 {
	if s.DailyStartBalance <= 0 {
		return 0
	}
	dd := float64(s.DailyStartBalance-s.CurrentBalance) / float64(s.DailyStartBalance)
	if dd < 0 {
		return 0
	}
	return dd
}

// DailyPnL returns today's realized P&L in cents.
func (s *RiskState) DailyPnL() int64 {
	return s.CurrentBalance - s.DailyStartBalance
}
