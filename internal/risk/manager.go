package risk

import (
	"fmt"
	"sync"
	"time"

	"polytraderv1/internal/model"
)

// RejectionReason enumerates the machine-readable reasons an admission is
// refused. These values are part of the append-only log schema.
type RejectionReason string

const (
	ReasonLowConfidence    RejectionReason = "LOW_CONFIDENCE"
	ReasonDailyLimit       RejectionReason = "DAILY_LIMIT"
	ReasonConcurrencyLimit RejectionReason = "CONCURRENCY_LIMIT"
	ReasonHalted           RejectionReason = "HALTED"
	ReasonDrawdown         RejectionReason = "DRAWDOWN"
	ReasonPhaseClosed      RejectionReason = "PHASE_CLOSED"
)

// Admission is a permitted, sized order intent.
type Admission struct {
	Size       int64 // stake in cents
	Multiplier float64
	State      model.RiskState // state snapshot after the trades_today increment
}

// Rejection is a refused admission with its reason.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) String() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Manager guards RiskState behind a single mutex. Every decision that
// reads or writes the state — admission checks, outcome application, halts,
// daily resets — goes through this one mutation path, so no in-flight
// admission can bypass a halt set between ticks.
type Manager struct {
	mu     sync.Mutex
	limits Limits
	state  model.RiskState
}

// NewManager creates a manager with the given limits and starting balance.
func NewManager(limits Limits, initialBalance int64, now time.Time) *Manager {
	day := now.UTC().Truncate(24 * time.Hour)
	return &Manager{
		limits: limits,
		state: model.RiskState{
			DailyStartBalance: initialBalance,
			CurrentBalance:    initialBalance,
			SizeMultiplier:    1.0,
			Day:               day,
		},
	}
}

// Evaluate runs the full admission gate for a signal. On admission the
// trades_today counter is incremented atomically with the checks; a
// rejection never consumes budget.
//
// Check order: phase, halt, drawdown (which sets a halt on first
// crossing), confidence, daily limit, concurrency. First failure wins:
// a halted manager answers HALTED whatever the signal's confidence.
func (m *Manager) Evaluate(sig *model.Signal, open []model.Position, phase model.Phase, now time.Time) (Admission, *Rejection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDayLocked(now)
	m.state = clearExpiredHalt(m.state, now)

	if phase != model.PhaseEntryOpen {
		return Admission{}, &Rejection{
			Reason: ReasonPhaseClosed,
			Detail: (&model.PhaseViolation{Phase: phase}).Error(),
		}
	}
	if m.state.Halted(now) {
		return Admission{}, &Rejection{
			Reason: ReasonHalted,
			Detail: fmt.Sprintf("%s until %s", m.state.HaltReason, m.state.HaltedUntil.Format(time.RFC3339)),
		}
	}
	if dd := m.state.DailyDrawdownPct(); dd >= m.limits.DailyDrawdownHaltPct {
		until := now.Add(m.limits.DrawdownCooldown)
		m.state = applyHalt(m.state, until, fmt.Sprintf("daily drawdown %.1f%%", dd*100))
		return Admission{}, &Rejection{
			Reason: ReasonDrawdown,
			Detail: fmt.Sprintf("drawdown %.1f%% >= %.1f%% ceiling, halted until %s",
				dd*100, m.limits.DailyDrawdownHaltPct*100, until.Format(time.RFC3339)),
		}
	}
	if sig.Direction == model.DirectionHold || confidenceRank(sig.Confidence) < confidenceRank(m.limits.MinConfidence) {
		return Admission{}, &Rejection{
			Reason: ReasonLowConfidence,
			Detail: fmt.Sprintf("%s confidence below %s minimum", sig.Confidence, m.limits.MinConfidence),
		}
	}
	if m.state.TradesToday >= m.limits.DailyTradeLimit {
		return Admission{}, &Rejection{
			Reason: ReasonDailyLimit,
			Detail: fmt.Sprintf("%d trades today", m.state.TradesToday),
		}
	}
	if len(open) >= m.limits.MaxConcurrentPositions {
		return Admission{}, &Rejection{
			Reason: ReasonConcurrencyLimit,
			Detail: fmt.Sprintf("%d positions open", len(open)),
		}
	}
	if !m.limits.AllowOppositePositions {
		for i := range open {
			if open[i].Direction != sig.Direction {
				return Admission{}, &Rejection{
					Reason: ReasonConcurrencyLimit,
					Detail: fmt.Sprintf("open %s position conflicts with %s entry", open[i].Direction, sig.Direction),
				}
			}
		}
	}

	size := m.sizeLocked()
	m.state.TradesToday++

	return Admission{Size: size, Multiplier: m.state.SizeMultiplier, State: m.state}, nil
}

// sizeLocked computes multiplier × base_pct × balance, clamped to the
// [min_trade, max_pct × balance] band. The cap is applied last so the
// monotonic bound holds for every streak sequence.
func (m *Manager) sizeLocked() int64 {
	size := int64(m.state.SizeMultiplier * m.limits.BasePositionPct * float64(m.state.CurrentBalance))
	if size < m.limits.MinTradeCents {
		size = m.limits.MinTradeCents
	}
	if ceil := int64(m.limits.MaxPositionPct * float64(m.state.CurrentBalance)); size > ceil {
		size = ceil
	}
	return size
}

// ReleaseAdmission returns the daily budget slot consumed by an admission
// whose order never filled. The failed attempt must not count as a trade.
func (m *Manager) ReleaseAdmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.TradesToday > 0 {
		m.state.TradesToday--
	}
}

// RecordOutcome folds a resolved position's result into the state and
// returns the new state snapshot.
func (m *Manager) RecordOutcome(won bool, pnl int64) model.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = applyOutcome(m.state, Outcome{Won: won, PnL: pnl}, m.limits)
	return m.state
}

// Halt imposes a manual or drawdown halt until the given time.
func (m *Manager) Halt(until time.Time, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = applyHalt(m.state, until, reason)
}

// Resume clears any active halt.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.HaltedUntil = time.Time{}
	m.state.HaltReason = ""
}

// SetBalance overrides the tracked balance (live-mode reconciliation
// against the on-chain balance).
func (m *Manager) SetBalance(cents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.CurrentBalance = cents
}

// State returns a snapshot of the current risk state.
func (m *Manager) State() model.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// rollDayLocked resets daily counters when now crosses the UTC day
// boundary.
func (m *Manager) rollDayLocked(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if day.After(m.state.Day) {
		m.state = newDayState(m.state, day)
	}
}

// RollDay exposes the daily reset for the loop's day-boundary tick.
func (m *Manager) RollDay(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked(now)
}
