// Package indicator computes the momentum/oscillator/volume-weighted
// features the signal evaluator votes on.
//
// Every function here is a pure function of the supplied sample slice:
// no internal state, so a tick can be replayed deterministically in tests.
// Insufficient history is reported through the ok return, never defaulted
// to a neutral value.
package indicator

import (
	"time"

	"polytraderv1/internal/model"
)

// RSI computes the relative strength index over the most recent period
// price changes. Requires period+1 samples; ok is false otherwise.
func RSI(samples []model.PriceSample, period int) (float64, bool) {
	if period <= 0 || len(samples) < period+1 {
		return 0, false
	}

	recent := samples[len(samples)-(period+1):]
	var avgGain, avgLoss float64
	for i := 1; i < len(recent); i++ {
		delta := recent[i].Price - recent[i-1].Price
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100, true // no losses in the window
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// VWAP computes the volume-weighted average price of the given samples.
// Samples without volume fall back to an unweighted average.
func VWAP(samples []model.PriceSample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}

	var pvSum, vSum float64
	for _, s := range samples {
		pvSum += s.Price * s.Volume
		vSum += s.Volume
	}
	if vSum == 0 {
		var sum float64
		for _, s := range samples {
			sum += s.Price
		}
		return sum / float64(len(samples)), true
	}
	return pvSum / vSum, true
}

// VWAPDeviationPct returns the percentage deviation of price from vwap.
// Positive means price is above VWAP.
func VWAPDeviationPct(price, vwap float64) float64 {
	if vwap == 0 {
		return 0
	}
	return (price - vwap) / vwap * 100
}

// MomentumPct computes the percentage price change over the trailing
// lookback. The reference sample is the newest one at least lookback old;
// ok is false when the history does not reach back that far.
func MomentumPct(samples []model.PriceSample, lookback time.Duration) (float64, bool) {
	if len(samples) < 2 {
		return 0, false
	}

	latest := samples[len(samples)-1]
	cutoff := latest.TS.Add(-lookback)

	ref := -1
	for i := len(samples) - 2; i >= 0; i-- {
		if !samples[i].TS.After(cutoff) {
			ref = i
			break
		}
	}
	if ref < 0 || samples[ref].Price == 0 {
		return 0, false
	}
	return (latest.Price - samples[ref].Price) / samples[ref].Price * 100, true
}

// ClassifyMomentum maps a momentum percentage to a direction using a
// dead-band (in %) that absorbs sub-noise moves.
func ClassifyMomentum(pct, deadBandPct float64) model.Momentum {
	switch {
	case pct > deadBandPct:
		return model.MomentumUp
	case pct < -deadBandPct:
		return model.MomentumDown
	default:
		return model.MomentumFlat
	}
}

// SMA computes the simple moving average of the last period samples.
func SMA(samples []model.PriceSample, period int) (float64, bool) {
	if period <= 0 || len(samples) < period {
		return 0, false
	}
	var sum float64
	for _, s := range samples[len(samples)-period:] {
		sum += s.Price
	}
	return sum / float64(period), true
}

// EMA computes the exponential moving average seeded with the SMA of the
// first period samples.
func EMA(samples []model.PriceSample, period int) (float64, bool) {
	if period <= 0 || len(samples) < period {
		return 0, false
	}
	k := 2.0 / float64(period+1)

	var ema float64
	for _, s := range samples[:period] {
		ema += s.Price
	}
	ema /= float64(period)

	for _, s := range samples[period:] {
		ema = s.Price*k + ema*(1-k)
	}
	return ema, true
}
