// Package risk is the sole owner of RiskState and the only component that
// can turn a signal into an admitted, sized order intent.
//
// State transitions are pure functions (old state, event) → new state; the
// Manager wraps them in a single mutex so the daily-limit check and the
// trades_today increment can never race an asynchronous resolution or a
// halt being set.
package risk

import (
	"time"

	"polytraderv1/internal/model"
)

// Limits is the configured risk envelope. Values come from config and are
// immutable for the life of the manager.
type Limits struct {
	BasePositionPct float64
	MaxPositionPct  float64
	MinTradeCents   int64

	MultiplierMin  float64
	MultiplierMax  float64
	MultiplierStep float64

	MaxConcurrentPositions int
	DailyTradeLimit        int
	DailyDrawdownHaltPct   float64
	DrawdownCooldown       time.Duration

	ConsecutiveWinThreshold  int // wins per multiplier step up
	LossStepDownStreak       int // straight losses before the multiplier steps down
	ConsecutiveLossThreshold int // losses that force the multiplier floor

	MinConfidence          model.Confidence
	AllowOppositePositions bool
}

// Outcome is a resolved-position event applied to the state.
type Outcome struct {
	Won bool
	PnL int64 // cents, negative on loss
}

// newDayState returns a fresh daily state carrying over the balance and the
// size multiplier. Streaks survive the day boundary; daily counters do not.
func newDayState(s model.RiskState, day time.Time) model.RiskState {
	s.DailyStartBalance = s.CurrentBalance
	s.TradesToday = 0
	s.Day = day
	return s
}

// applyOutcome folds a win/loss into the state.
//
// Wins accumulate slowly: the multiplier steps up only after every
// ConsecutiveWinThreshold straight wins, capped at MultiplierMax. Losses
// reset promptly: any loss strips the win bonus immediately, a
// LossStepDownStreak-long streak steps the multiplier down, and reaching
// the loss-streak threshold forces it to the floor — a
// degraded-but-operating state, not a halt.
func applyOutcome(s model.RiskState, ev Outcome, lim Limits) model.RiskState {
	s.CurrentBalance += ev.PnL

	if ev.Won {
		s.ConsecutiveWins++
		s.ConsecutiveLosses = 0
		if lim.ConsecutiveWinThreshold > 0 && s.ConsecutiveWins%lim.ConsecutiveWinThreshold == 0 {
			s.SizeMultiplier = clamp(s.SizeMultiplier+lim.MultiplierStep, lim.MultiplierMin, lim.MultiplierMax)
		}
		return s
	}

	s.ConsecutiveLosses++
	s.ConsecutiveWins = 0
	if s.SizeMultiplier > 1.0 {
		s.SizeMultiplier = 1.0
	}
	if lim.LossStepDownStreak > 0 && s.ConsecutiveLosses >= lim.LossStepDownStreak {
		s.SizeMultiplier = clamp(s.SizeMultiplier-lim.MultiplierStep, lim.MultiplierMin, lim.MultiplierMax)
	}
	if lim.ConsecutiveLossThreshold > 0 && s.ConsecutiveLosses >= lim.ConsecutiveLossThreshold {
		s.SizeMultiplier = lim.MultiplierMin
	}
	return s
}

// applyHalt records a timed halt.
func applyHalt(s model.RiskState, until time.Time, reason string) model.RiskState {
	s.HaltedUntil = until
	s.HaltReason = reason
	return s
}

// clearExpiredHalt removes a halt whose cooldown has elapsed.
func clearExpiredHalt(s model.RiskState, now time.Time) model.RiskState {
	if !s.HaltedUntil.IsZero() && !now.Before(s.HaltedUntil) {
		s.HaltedUntil = time.Time{}
		s.HaltReason = ""
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// confidenceRank orders tiers for the minimum-confidence gate.
func confidenceRank(c model.Confidence) int {
	switch c {
	case model.ConfidenceHigh:
		return 3
	case model.ConfidenceMedium:
		return 2
	case model.ConfidenceLow:
		return 1
	default:
		return 0
	}
}
