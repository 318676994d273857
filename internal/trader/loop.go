// Package trader runs the decision loop: one evaluation tick per minute,
// gated by the interval clock, the convergence evaluator, and the risk
// manager, with every outcome recorded to the audit logs.
//
// The loop is deliberately single-threaded: samples stream in on a
// channel, but all decisions happen inside step(), so the sequence
// evaluate → admit → submit → record is never interleaved.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"polytraderv1/internal/history"
	"polytraderv1/internal/indicator"
	"polytraderv1/internal/interval"
	"polytraderv1/internal/ledger"
	"polytraderv1/internal/metrics"
	"polytraderv1/internal/model"
	"polytraderv1/internal/notification"
	"polytraderv1/internal/risk"
	"polytraderv1/internal/signal"
	redisstore "polytraderv1/internal/store/redis"
)

// Config holds the loop's own knobs; collaborator configuration lives
// with the collaborators.
type Config struct {
	Mode              string
	TickInterval      time.Duration
	StaleGapThreshold time.Duration
	MinDataPoints     int
	ScorerEnabled     bool
}

// Deps wires the loop to its collaborators. Feed, Discovery, Oracle and
// Gateway are required; the rest degrade gracefully when nil.
type Deps struct {
	Clock     *interval.Clock
	Engine    *indicator.Engine
	Evaluator *signal.Evaluator
	Risk      *risk.Manager
	Ledger    *ledger.Ledger
	History   *history.Window

	Feed      model.PriceFeed
	Discovery model.MarketDiscovery
	Oracle    model.OutcomeOracle
	Gateway   model.ExecutionGateway
	Scorer    model.DirectionScorer

	SignalLogs []model.SignalLog
	TradeLogs  []model.TradeLog
	Notifier   notification.Notifier
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus
	Store      *redisstore.Store
}

// Loop is the decision loop.
type Loop struct {
	cfg  Config
	deps Deps

	window  *model.IntervalWindow
	settled bool

	// day-local tallies for the rollover summary
	day       time.Time
	winsToday int
	lossToday int

	now func() time.Time
}

// New creates a decision loop.
func New(cfg Config, deps Deps) *Loop {
	return &Loop{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
}

// Run starts the feed and ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	samples := make(chan model.PriceSample, 1024)

	feedErr := make(chan error, 1)
	go func() {
		feedErr <- l.deps.Feed.Run(ctx, samples)
	}()

	l.day = l.now().UTC().Truncate(24 * time.Hour)

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	log.Printf("[trader] loop started: mode=%s tick=%s", l.cfg.Mode, l.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-feedErr:
			return err
		case s := <-samples:
			if !l.deps.History.Append(s) {
				l.countDropped()
			} else {
				l.countSample(s)
			}
		case <-ticker.C:
			l.drainSamples(samples)
			l.step(ctx, l.now())
		}
	}
}

// drainSamples empties the buffered channel so the tick evaluates the
// freshest history.
func (l *Loop) drainSamples(samples <-chan model.PriceSample) {
	for {
		select {
		case s := <-samples:
			if !l.deps.History.Append(s) {
				l.countDropped()
			} else {
				l.countSample(s)
			}
		default:
			return
		}
	}
}

// step runs one evaluation tick.
func (l *Loop) step(ctx context.Context, now time.Time) {
	started := time.Now()
	defer func() {
		if l.deps.Metrics != nil {
			l.deps.Metrics.TickDuration.Observe(time.Since(started).Seconds())
		}
	}()

	l.rollDayIfNeeded(now)
	l.applyRemoteControl(ctx, now)
	l.refreshWindow(ctx, now)
	if l.deps.Health != nil {
		l.deps.Health.SetWindowKnown(l.window != nil)
	}
	l.resolveIfDue(ctx, now)

	phase := l.deps.Clock.Phase(l.window, now, l.settled)

	// Data-gap policy: with a stale feed the only safe signal is HOLD.
	if gap := l.dataGap(now); gap != nil {
		log.Printf("[trader] %v; forcing HOLD", gap)
		if l.deps.Metrics != nil {
			l.deps.Metrics.DataGapsTotal.Inc()
		}
		if l.deps.Health != nil {
			l.deps.Health.SetFeedConnected(false)
		}
		l.recordSignal(model.Signal{
			Direction:  model.DirectionHold,
			Confidence: model.ConfidenceLow,
			At:         now,
		}, "HOLD (DATA_GAP)")
		l.publishStatus(ctx)
		return
	}

	features := l.computeFeatures(now)
	sig := l.evaluate(ctx, features, now)

	if l.deps.Metrics != nil {
		l.deps.Metrics.SignalsTotal.WithLabelValues(string(sig.Direction), string(sig.Confidence)).Inc()
	}

	action := l.act(ctx, &sig, phase, now)
	l.recordSignal(sig, action)
	l.publishStatus(ctx)
}

// refreshWindow queries market discovery when no usable window is held.
// Discovery runs once per window, not per tick.
func (l *Loop) refreshWindow(ctx context.Context, now time.Time) {
	if l.window != nil && now.Before(l.window.End) {
		return
	}
	if l.window != nil && !l.settled {
		// Keep an unsettled ended window only while positions ride on it.
		// With nothing staked a never-settling market must not block the
		// next window's discovery.
		if len(l.deps.Ledger.OpenForWindow(l.window.ID)) > 0 {
			return
		}
		l.settled = true
	}
	w, err := l.deps.Discovery.ActiveWindow(ctx, now)
	if err != nil {
		log.Printf("[trader] window discovery failed: %v", err)
		l.window = nil
		return
	}
	if w == nil || !w.End.After(now) {
		// Discovery can lag the schedule; an ended window is useless.
		l.window = nil
		return
	}
	l.window = w
	l.settled = false
	log.Printf("[trader] active window: %s (%s) ends %s", w.ID, w.Title, w.End.Format(time.RFC3339))
}

// resolveIfDue polls the oracle for an ended window and settles positions.
func (l *Loop) resolveIfDue(ctx context.Context, now time.Time) {
	if l.window == nil || l.settled || now.Before(l.window.End) {
		return
	}
	winner, err := l.deps.Oracle.Outcome(ctx, l.window)
	if err != nil {
		if !errors.Is(err, model.ErrOracleUnavailable) {
			log.Printf("[trader] outcome query failed: %v", err)
		}
		return
	}

	settled := l.deps.Ledger.ResolveWindow(l.window.ID, winner, now)
	for _, pos := range settled {
		won := pos.Status == model.PositionWon
		state := l.deps.Risk.RecordOutcome(won, pos.PnL)
		if won {
			l.winsToday++
		} else {
			l.lossToday++
		}
		l.recordTrade(model.TradeRecord{
			TS:         now,
			WindowID:   pos.WindowID,
			Direction:  pos.Direction,
			Size:       pos.Size,
			EntryPrice: pos.EntryPrice,
			Confidence: pos.Confidence,
			Status:     pos.Status,
			PnL:        pos.PnL,
		})
		l.notify(ctx, notification.ResolutionAlert(pos, state.CurrentBalance))
		if l.deps.Metrics != nil {
			if won {
				l.deps.Metrics.ResolutionsWon.Inc()
			} else {
				l.deps.Metrics.ResolutionsLost.Inc()
			}
			l.deps.Metrics.BalanceCents.Set(float64(state.CurrentBalance))
			l.deps.Metrics.DailyDrawdown.Set(state.DailyDrawdownPct())
			l.deps.Metrics.SizeMultiplier.Set(state.SizeMultiplier)
		}
		log.Printf("[trader] settled %s: %s %s pnl=%s balance=%s",
			pos.ID, pos.Direction, pos.Status, model.FormatUSD(pos.PnL), model.FormatUSD(state.CurrentBalance))
	}
	l.settled = true

	if l.deps.Metrics != nil {
		l.deps.Metrics.OpenPositions.Set(float64(len(l.deps.Ledger.OpenPositions())))
	}
}

// dataGap returns a DataGapError when the feed has gone quiet past the
// threshold. Before the first sample arrives there is no gap, only an
// empty history that MIN_DATA_POINTS already guards.
func (l *Loop) dataGap(now time.Time) *model.DataGapError {
	last := l.deps.Feed.LastSampleAt()
	if last.IsZero() {
		return nil
	}
	age := now.Sub(last)
	if age <= l.cfg.StaleGapThreshold {
		return nil
	}
	return &model.DataGapError{Age: age, Threshold: l.cfg.StaleGapThreshold}
}

func (l *Loop) computeFeatures(now time.Time) model.FeatureSnapshot {
	samples := l.deps.History.Snapshot()
	var windowStart time.Time
	if l.window != nil {
		windowStart = l.window.Start
	}
	return l.deps.Engine.Compute(samples, windowStart, now)
}

func (l *Loop) evaluate(ctx context.Context, features model.FeatureSnapshot, now time.Time) model.Signal {
	if features.DataPoints < l.cfg.MinDataPoints {
		return model.Signal{
			Direction:  model.DirectionHold,
			Confidence: model.ConfidenceLow,
			Features:   features,
			Reasons: []string{
				fmt.Sprintf("insufficient data: %d of %d samples", features.DataPoints, l.cfg.MinDataPoints),
			},
			At: now,
		}
	}

	var vote *model.ScorerVote
	if l.cfg.ScorerEnabled && l.deps.Scorer != nil {
		v, err := l.deps.Scorer.Score(ctx, features, l.window)
		if err == nil {
			vote = &v
		} else if !errors.Is(err, model.ErrScorerUnavailable) {
			log.Printf("[trader] scorer error: %v", err)
		}
	}
	return l.deps.Evaluator.Evaluate(features, vote, now)
}

// act runs the admission gate and, on admission, submits the order.
// It returns the action string for the signal audit row.
func (l *Loop) act(ctx context.Context, sig *model.Signal, phase model.Phase, now time.Time) string {
	if !sig.Actionable() {
		return "HOLD"
	}

	adm, rej := l.deps.Risk.Evaluate(sig, l.deps.Ledger.OpenPositions(), phase, now)
	if rej != nil {
		log.Printf("[trader] rejected %s/%s: %s", sig.Direction, sig.Confidence, rej)
		l.recordTrade(model.TradeRecord{
			TS:              now,
			WindowID:        l.windowID(),
			Direction:       sig.Direction,
			Confidence:      sig.Confidence,
			RejectionReason: string(rej.Reason),
		})
		l.notify(ctx, notification.RejectionAlert(sig, string(rej.Reason), rej.Detail))
		if l.deps.Metrics != nil {
			l.deps.Metrics.RejectionsTotal.WithLabelValues(string(rej.Reason)).Inc()
			if rej.Reason == risk.ReasonDrawdown {
				l.deps.Metrics.HaltsTotal.Inc()
			}
		}
		if rej.Reason == risk.ReasonDrawdown {
			state := l.deps.Risk.State()
			l.notify(ctx, notification.HaltAlert(state.HaltReason, state.HaltedUntil))
		}
		return string(rej.Reason)
	}

	entryPrice := l.window.EntryPrice(sig.Direction)
	intent := model.OrderIntent{
		WindowID:  l.window.ID,
		Direction: sig.Direction,
		Token:     l.window.Token(sig.Direction),
		Size:      adm.Size,
		Price:     entryPrice,
	}

	fill, err := l.deps.Gateway.Submit(ctx, intent)
	if err != nil {
		// A failed submission must not count against the daily budget.
		l.deps.Risk.ReleaseAdmission()
		log.Printf("[trader] submit failed: %v", err)
		l.notify(ctx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "Order submission failed",
			Message: err.Error(),
		})
		if l.deps.Metrics != nil {
			l.deps.Metrics.ExecutionFailures.Inc()
		}
		return "EXECUTION_FAILED"
	}

	pos := l.deps.Ledger.Open(l.window, sig.Direction, adm.Size, sig.Confidence, fill)
	l.recordTrade(model.TradeRecord{
		TS:         now,
		WindowID:   pos.WindowID,
		Direction:  pos.Direction,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		Confidence: pos.Confidence,
		Status:     pos.Status,
	})
	l.notify(ctx, notification.AdmissionAlert(pos, l.window, adm.State.CurrentBalance))
	if l.deps.Metrics != nil {
		l.deps.Metrics.AdmissionsTotal.Inc()
		l.deps.Metrics.OpenPositions.Set(float64(len(l.deps.Ledger.OpenPositions())))
		l.deps.Metrics.SizeMultiplier.Set(adm.Multiplier)
	}
	log.Printf("[trader] entered %s size=%s price=%.3f order=%s",
		pos.Direction, model.FormatUSD(pos.Size), pos.EntryPrice, pos.OrderID)
	return "ADMITTED"
}

// applyRemoteControl picks up halt/resume requests left by the status bot.
func (l *Loop) applyRemoteControl(ctx context.Context, now time.Time) {
	if l.deps.Store == nil {
		return
	}
	cmd, ok, err := l.deps.Store.PendingHalt(ctx)
	if err != nil {
		return
	}
	state := l.deps.Risk.State()
	switch {
	case ok && !state.Halted(now):
		l.deps.Risk.Halt(cmd.Until, remoteHaltPrefix+cmd.Reason)
		l.notify(ctx, notification.HaltAlert(cmd.Reason, cmd.Until))
		if l.deps.Metrics != nil {
			l.deps.Metrics.HaltsTotal.Inc()
		}
		log.Printf("[trader] remote halt until %s: %s", cmd.Until.Format(time.RFC3339), cmd.Reason)
	case !ok && state.Halted(now) && state.HaltReason != "" && isRemoteHalt(state.HaltReason):
		l.deps.Risk.Resume()
		l.notify(ctx, notification.ResumeAlert("status bot"))
		log.Printf("[trader] remote halt cleared")
	}
}

// Remote halts are distinguishable so clearing the flag never cancels a
// drawdown cooldown.
const remoteHaltPrefix = "remote: "

func isRemoteHalt(reason string) bool {
	return len(reason) >= len(remoteHaltPrefix) && reason[:len(remoteHaltPrefix)] == remoteHaltPrefix
}

func (l *Loop) rollDayIfNeeded(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.After(l.day) {
		return
	}
	state := l.deps.Risk.State()
	l.notify(context.Background(), notification.DailySummaryAlert(state, l.winsToday, l.lossToday))
	log.Printf("[trader] day rollover: pnl=%s trades=%d", model.FormatUSD(state.DailyPnL()), state.TradesToday)

	l.deps.Risk.RollDay(now)
	l.day = day
	l.winsToday = 0
	l.lossToday = 0
}

func (l *Loop) recordSignal(sig model.Signal, action string) {
	rec := model.SignalRecord{
		TS:               sig.At,
		WindowID:         l.windowID(),
		Price:            sig.Features.Price,
		RSI:              sig.Features.RSI,
		RSIValid:         sig.Features.RSIValid,
		VWAPDeviationPct: sig.Features.VWAPDeviationPct,
		Momentum:         sig.Features.Momentum,
		Direction:        sig.Direction,
		Confidence:       sig.Confidence,
		Action:           action,
	}
	for _, sink := range l.deps.SignalLogs {
		if err := sink.AppendSignal(rec); err != nil {
			log.Printf("[trader] signal log append failed: %v", err)
		}
	}
}

func (l *Loop) recordTrade(rec model.TradeRecord) {
	for _, sink := range l.deps.TradeLogs {
		if err := sink.AppendTrade(rec); err != nil {
			log.Printf("[trader] trade log append failed: %v", err)
		}
	}
}

func (l *Loop) notify(ctx context.Context, alert notification.Alert) {
	if l.deps.Notifier == nil {
		return
	}
	if err := l.deps.Notifier.Send(ctx, alert); err != nil {
		log.Printf("[trader] notification failed: %v", err)
	}
}

func (l *Loop) publishStatus(ctx context.Context) {
	if l.deps.Store == nil {
		return
	}
	state := l.deps.Risk.State()
	snap := redisstore.StatusSnapshot{
		Mode:            l.cfg.Mode,
		BalanceCents:    state.CurrentBalance,
		DailyPnLCents:   state.DailyPnL(),
		TradesToday:     state.TradesToday,
		OpenPositions:   len(l.deps.Ledger.OpenPositions()),
		SizeMultiplier:  state.SizeMultiplier,
		HaltedUntil:     state.HaltedUntil,
		HaltReason:      state.HaltReason,
		CurrentWindowID: l.windowID(),
	}
	if err := l.deps.Store.PublishStatus(ctx, snap); err != nil && err != redisstore.ErrCircuitOpen {
		log.Printf("[trader] status publish failed: %v", err)
	}
}

func (l *Loop) windowID() string {
	if l.window == nil {
		return ""
	}
	return l.window.ID
}

// countSample feeds the ingest counter and the health endpoint; a
// flowing feed reads as connected.
func (l *Loop) countSample(s model.PriceSample) {
	if l.deps.Metrics != nil {
		l.deps.Metrics.SamplesTotal.Inc()
	}
	if l.deps.Health != nil {
		l.deps.Health.SetFeedConnected(true)
		l.deps.Health.SetLastSampleTime(s.TS)
	}
}

func (l *Loop) countDropped() {
	if l.deps.Metrics != nil {
		l.deps.Metrics.DroppedSamples.Inc()
	}
}
