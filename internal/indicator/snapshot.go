package indicator

import (
	"time"

	"polytraderv1/internal/model"
)

// Config sets the lookbacks and thresholds for feature computation.
type Config struct {
	RSIPeriod           int
	MomentumLookback    time.Duration
	MomentumDeadBandPct float64
}

// Engine turns a price-history snapshot into a FeatureSnapshot. It holds
// configuration only; computation is stateless per tick.
type Engine struct {
	cfg Config
}

// NewEngine creates a feature engine with the given config.
func NewEngine(cfg Config) *Engine {
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.MomentumLookback <= 0 {
		cfg.MomentumLookback = time.Minute
	}
	return &Engine{cfg: cfg}
}

// Compute derives all features for one evaluation tick.
//
// RSI and momentum read the full rolling history; VWAP deviation uses only
// samples since windowStart, so it reflects the active window's elapsed
// portion. Pass a zero windowStart to fall back to the full history.
func (e *Engine) Compute(samples []model.PriceSample, windowStart, now time.Time) model.FeatureSnapshot {
	snap := model.FeatureSnapshot{
		DataPoints: len(samples),
		ComputedAt: now,
	}
	if len(samples) == 0 {
		return snap
	}
	snap.Price = samples[len(samples)-1].Price

	snap.RSI, snap.RSIValid = RSI(samples, e.cfg.RSIPeriod)

	windowSamples := samples
	if !windowStart.IsZero() {
		i := 0
		for i < len(samples) && samples[i].TS.Before(windowStart) {
			i++
		}
		windowSamples = samples[i:]
	}
	if vwap, ok := VWAP(windowSamples); ok {
		snap.VWAPDeviationPct = VWAPDeviationPct(snap.Price, vwap)
		snap.VWAPValid = true
	}

	if pct, ok := MomentumPct(samples, e.cfg.MomentumLookback); ok {
		snap.MomentumPct = pct
		snap.Momentum = ClassifyMomentum(pct, e.cfg.MomentumDeadBandPct)
		snap.MomentumValid = true
	} else {
		snap.Momentum = model.MomentumFlat
	}

	return snap
}
