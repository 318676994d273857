package risk

import (
	"testing"
	"time"

	"polytraderv1/internal/model"
)

func testLimits() Limits {
	return Limits{
		BasePositionPct:          0.10,
		MaxPositionPct:           0.15,
		MinTradeCents:            100,
		MultiplierMin:            0.5,
		MultiplierMax:            1.5,
		MultiplierStep:           0.2,
		MaxConcurrentPositions:   2,
		DailyTradeLimit:          8,
		DailyDrawdownHaltPct:     0.10,
		DrawdownCooldown:         4 * time.Hour,
		ConsecutiveWinThreshold:  3,
		LossStepDownStreak:       2,
		ConsecutiveLossThreshold: 3,
		MinConfidence:            model.ConfidenceMedium,
	}
}

var riskNow = time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

func upSignal(conf model.Confidence) *model.Signal {
	return &model.Signal{Direction: model.DirectionUp, Confidence: conf}
}

// Scenario A: $500 balance, 3 straight wins, HIGH signal inside ENTRY_OPEN,
// 2 of 8 trades used → admitted at the stepped-up 12% = $60.
func TestEvaluate_ScenarioA_WinStreakScalesUp(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)

	for i := 0; i < 3; i++ {
		m.RecordOutcome(true, 0) // wins without P&L keep the arithmetic exact
	}
	m.state.TradesToday = 2

	adm, rej := m.Evaluate(upSignal(model.ConfidenceHigh), nil, model.PhaseEntryOpen, riskNow)
	if rej != nil {
		t.Fatalf("expected admission, got rejection %s", rej)
	}
	if adm.Size != 6000 {
		t.Errorf("expected size $60.00 (1.2 × 10%% × $500), got %s", model.FormatUSD(adm.Size))
	}
	if adm.State.TradesToday != 3 {
		t.Errorf("expected trades_today=3 after admission, got %d", adm.State.TradesToday)
	}
}

// Scenario B: 10% daily drawdown → DRAWDOWN rejection and a 4h halt, then
// HALTED for any further signal regardless of confidence.
func TestEvaluate_ScenarioB_DrawdownHalts(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)
	m.RecordOutcome(false, -5000) // -$50 = exactly 10%

	_, rej := m.Evaluate(upSignal(model.ConfidenceHigh), nil, model.PhaseEntryOpen, riskNow)
	if rej == nil || rej.Reason != ReasonDrawdown {
		t.Fatalf("expected DRAWDOWN rejection, got %v", rej)
	}

	st := m.State()
	wantUntil := riskNow.Add(4 * time.Hour)
	if !st.HaltedUntil.Equal(wantUntil) {
		t.Errorf("expected halted_until %v, got %v", wantUntil, st.HaltedUntil)
	}

	_, rej = m.Evaluate(upSignal(model.ConfidenceHigh), nil, model.PhaseEntryOpen, riskNow.Add(time.Minute))
	if rej == nil || rej.Reason != ReasonHalted {
		t.Fatalf("expected HALTED after drawdown halt, got %v", rej)
	}

	// Cooldown elapsed and balance recovered → trading resumes
	m.SetBalance(50000)
	adm, rej := m.Evaluate(upSignal(model.ConfidenceHigh), nil, model.PhaseEntryOpen, riskNow.Add(5*time.Hour))
	if rej != nil {
		t.Fatalf("expected admission after cooldown, got %s", rej)
	}
	if adm.Size == 0 {
		t.Error("expected non-zero size after cooldown")
	}
}

func TestEvaluate_HaltedRejectsAnyConfidence(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)
	m.Halt(riskNow.Add(time.Hour), "manual stop")

	// HALTED wins over every other rejection, including the confidence
	// floor: a LOW signal during a halt must still answer HALTED.
	for _, conf := range []model.Confidence{model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow} {
		_, rej := m.Evaluate(upSignal(conf), nil, model.PhaseEntryOpen, riskNow)
		if rej == nil || rej.Reason != ReasonHalted {
			t.Errorf("confidence %s: expected HALTED, got %v", conf, rej)
		}
	}
}

func TestEvaluate_PhaseGating(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)
	for _, phase := range []model.Phase{
		model.PhasePreEntry, model.PhaseLate, model.PhaseResolving,
		model.PhaseClosed, model.PhaseUnknown,
	} {
		_, rej := m.Evaluate(upSignal(model.ConfidenceHigh), nil, phase, riskNow)
		if rej == nil || rej.Reason != ReasonPhaseClosed {
			t.Errorf("phase %s: expected PHASE_CLOSED, got %v", phase, rej)
			continue
		}
		if want := (&model.PhaseViolation{Phase: phase}).Error(); rej.Detail != want {
			t.Errorf("phase %s: detail = %q, want %q", phase, rej.Detail, want)
		}
	}
}

func TestEvaluate_LowConfidenceAndHold(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)

	_, rej := m.Evaluate(upSignal(model.ConfidenceLow), nil, model.PhaseEntryOpen, riskNow)
	if rej == nil || rej.Reason != ReasonLowConfidence {
		t.Errorf("LOW confidence: expected LOW_CONFIDENCE, got %v", rej)
	}

	hold := &model.Signal{Direction: model.DirectionHold, Confidence: model.ConfidenceHigh}
	_, rej = m.Evaluate(hold, nil, model.PhaseEntryOpen, riskNow)
	if rej == nil || rej.Reason != ReasonLowConfidence {
		t.Errorf("HOLD direction: expected LOW_CONFIDENCE, got %v", rej)
	}
}

func TestEvaluate_DailyLimitStrictlyBounds(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)

	admitted := 0
	for i := 0; i < 20; i++ {
		if _, rej := m.Evaluate(upSignal(model.ConfidenceHigh), nil, model.PhaseEntryOpen, riskNow); rej == nil {
			admitted++
		} else if rej.Reason != ReasonDailyLimit {
			t.Fatalf("attempt %d: expected DAILY_LIMIT, got %v", i, rej)
		}
	}
	if admitted != 8 {
		t.Errorf("expected exactly 8 admissions, got %d", admitted)
	}
}

func TestEvaluate_ConcurrencyLimit(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)
	open := []model.Position{
		{Direction: model.DirectionUp, Status: model.PositionOpen},
		{Direction: model.DirectionUp, Status: model.PositionOpen},
	}
	_, rej := m.Evaluate(upSignal(model.ConfidenceHigh), open, model.PhaseEntryOpen, riskNow)
	if rej == nil || rej.Reason != ReasonConcurrencyLimit {
		t.Errorf("expected CONCURRENCY_LIMIT, got %v", rej)
	}
}

func TestEvaluate_OppositeDirectionBlockedByDefault(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)
	open := []model.Position{{Direction: model.DirectionDown, Status: model.PositionOpen}}

	_, rej := m.Evaluate(upSignal(model.ConfidenceHigh), open, model.PhaseEntryOpen, riskNow)
	if rej == nil || rej.Reason != ReasonConcurrencyLimit {
		t.Errorf("expected opposite-direction conflict, got %v", rej)
	}

	lim := testLimits()
	lim.AllowOppositePositions = true
	m2 := NewManager(lim, 50000, riskNow)
	if _, rej := m2.Evaluate(upSignal(model.ConfidenceHigh), open, model.PhaseEntryOpen, riskNow); rej != nil {
		t.Errorf("hedging enabled: expected admission, got %s", rej)
	}
}

// Size must never exceed max_position_pct × balance for any streak history.
func TestSize_MonotonicBound(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)

	outcomes := []bool{true, true, true, true, true, true, true, true, true, false, true, true, true}
	for _, won := range outcomes {
		pnl := int64(1000)
		if !won {
			pnl = -1000
		}
		m.RecordOutcome(won, pnl)

		st := m.State()
		m.mu.Lock()
		size := m.sizeLocked()
		m.mu.Unlock()
		bound := int64(0.15 * float64(st.CurrentBalance))
		if size > bound {
			t.Fatalf("size %d exceeds 15%% bound %d (multiplier %.2f)", size, bound, st.SizeMultiplier)
		}
	}
}

func TestApplyOutcome_StreakAsymmetry(t *testing.T) {
	lim := testLimits()
	s := model.RiskState{CurrentBalance: 50000, DailyStartBalance: 50000, SizeMultiplier: 1.0}

	// Three wins → one step up
	for i := 0; i < 3; i++ {
		s = applyOutcome(s, Outcome{Won: true, PnL: 0}, lim)
	}
	if s.SizeMultiplier != 1.2 {
		t.Fatalf("after 3 wins: expected multiplier 1.2, got %.2f", s.SizeMultiplier)
	}

	// A single loss strips the win bonus immediately
	s = applyOutcome(s, Outcome{Won: false, PnL: 0}, lim)
	if s.SizeMultiplier != 1.0 {
		t.Errorf("after 1 loss: expected multiplier reset to 1.0, got %.2f", s.SizeMultiplier)
	}
	if s.ConsecutiveWins != 0 || s.ConsecutiveLosses != 1 {
		t.Errorf("streak counters not mutually exclusive: wins=%d losses=%d", s.ConsecutiveWins, s.ConsecutiveLosses)
	}

	// Second loss steps down, third forces the floor
	s = applyOutcome(s, Outcome{Won: false, PnL: 0}, lim)
	if s.SizeMultiplier != 0.8 {
		t.Errorf("after 2 losses: expected 0.8, got %.2f", s.SizeMultiplier)
	}
	s = applyOutcome(s, Outcome{Won: false, PnL: 0}, lim)
	if s.SizeMultiplier != lim.MultiplierMin {
		t.Errorf("after loss-streak threshold: expected floor %.2f, got %.2f", lim.MultiplierMin, s.SizeMultiplier)
	}

	// A win zeroes the loss counter
	s = applyOutcome(s, Outcome{Won: true, PnL: 0}, lim)
	if s.ConsecutiveLosses != 0 || s.ConsecutiveWins != 1 {
		t.Errorf("win must zero loss streak: wins=%d losses=%d", s.ConsecutiveWins, s.ConsecutiveLosses)
	}
}

// The step-down streak is a limit like the others, not a constant: with
// LossStepDownStreak=1 the very first loss already steps the multiplier
// down, not just strips the bonus.
func TestApplyOutcome_StepDownStreakConfigurable(t *testing.T) {
	lim := testLimits()
	lim.LossStepDownStreak = 1
	s := model.RiskState{CurrentBalance: 50000, DailyStartBalance: 50000, SizeMultiplier: 1.0}

	s = applyOutcome(s, Outcome{Won: false, PnL: 0}, lim)
	if s.SizeMultiplier != 0.8 {
		t.Errorf("stepdown streak 1, after 1 loss: expected 0.8, got %.2f", s.SizeMultiplier)
	}

	lim.LossStepDownStreak = 3
	s = model.RiskState{CurrentBalance: 50000, DailyStartBalance: 50000, SizeMultiplier: 1.0}
	s = applyOutcome(s, Outcome{Won: false, PnL: 0}, lim)
	s = applyOutcome(s, Outcome{Won: false, PnL: 0}, lim)
	if s.SizeMultiplier != 1.0 {
		t.Errorf("stepdown streak 3, after 2 losses: expected 1.0, got %.2f", s.SizeMultiplier)
	}
}

func TestApplyOutcome_MultiplierStaysInBand(t *testing.T) {
	lim := testLimits()
	s := model.RiskState{CurrentBalance: 50000, DailyStartBalance: 50000, SizeMultiplier: 1.0}

	for i := 0; i < 30; i++ {
		s = applyOutcome(s, Outcome{Won: true, PnL: 100}, lim)
	}
	if s.SizeMultiplier > lim.MultiplierMax {
		t.Errorf("multiplier %.2f above cap %.2f", s.SizeMultiplier, lim.MultiplierMax)
	}
	for i := 0; i < 30; i++ {
		s = applyOutcome(s, Outcome{Won: false, PnL: -100}, lim)
	}
	if s.SizeMultiplier < lim.MultiplierMin {
		t.Errorf("multiplier %.2f below floor %.2f", s.SizeMultiplier, lim.MultiplierMin)
	}
}

func TestRollDay_ResetsDailyCountersOnly(t *testing.T) {
	m := NewManager(testLimits(), 50000, riskNow)
	m.RecordOutcome(true, 2000)
	m.RecordOutcome(true, 2000)
	if _, rej := m.Evaluate(upSignal(model.ConfidenceHigh), nil, model.PhaseEntryOpen, riskNow); rej != nil {
		t.Fatalf("setup admission failed: %s", rej)
	}

	m.RollDay(riskNow.Add(24 * time.Hour))
	st := m.State()
	if st.TradesToday != 0 {
		t.Errorf("expected trades_today reset, got %d", st.TradesToday)
	}
	if st.DailyStartBalance != st.CurrentBalance {
		t.Errorf("expected daily start rebased to %d, got %d", st.CurrentBalance, st.DailyStartBalance)
	}
	if st.ConsecutiveWins != 2 {
		t.Errorf("streaks must survive the day boundary, got wins=%d", st.ConsecutiveWins)
	}
}
