// Package signal turns a feature snapshot into a directional signal by
// convergence voting.
//
// Each factor (VWAP deviation, RSI band, momentum, and optionally an
// external scorer) votes UP, DOWN, or abstains when its input is missing
// or neutral. Strict majority among non-abstaining factors sets the
// direction; the confidence tier is a monotonic function of how many of
// the considered factors aligned. The evaluator is deterministic and
// side-effect free: the same snapshot and votes always yield the same
// signal.
package signal

import (
	"fmt"
	"time"

	"polytraderv1/internal/model"
)

// Factor names as they appear in contributing_factors and audit logs.
const (
	FactorVWAP     = "vwap_deviation"
	FactorRSI      = "rsi_band"
	FactorMomentum = "momentum"
	FactorScorer   = "scorer"
)

// Config sets the voting thresholds.
type Config struct {
	VWAPThresholdPct float64 // deviation magnitude required to vote
	RSIBullishLow    float64
	RSIBullishHigh   float64
	RSIBearishLow    float64
	RSIBearishHigh   float64

	// MinAlignedFactors is the minimum winning-vote count below which the
	// result is LOW confidence and HOLD.
	MinAlignedFactors int
}

// Evaluator applies convergence voting to feature snapshots.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.MinAlignedFactors < 1 {
		cfg.MinAlignedFactors = 2
	}
	return &Evaluator{cfg: cfg}
}

type vote struct {
	factor    string
	direction model.Direction // DirectionHold means abstain
	reason    string
}

// Evaluate produces the signal for one tick. scorer may be nil (factor
// abstains). The caller decides whether to act: the evaluator computes a
// signal even outside ENTRY_OPEN so it can be logged.
func (e *Evaluator) Evaluate(features model.FeatureSnapshot, scorer *model.ScorerVote, at time.Time) model.Signal {
	votes := []vote{
		e.voteVWAP(features),
		e.voteRSI(features),
		e.voteMomentum(features),
	}
	if scorer != nil && (scorer.Direction == model.DirectionUp || scorer.Direction == model.DirectionDown) {
		votes = append(votes, vote{
			factor:    FactorScorer,
			direction: scorer.Direction,
			reason:    fmt.Sprintf("scorer: %s (%s)", scorer.Direction, scorer.Confidence),
		})
	} else {
		votes = append(votes, vote{factor: FactorScorer, direction: model.DirectionHold, reason: "scorer: abstain"})
	}

	sig := model.Signal{
		Direction:  model.DirectionHold,
		Confidence: model.ConfidenceLow,
		Features:   features,
		At:         at,
	}

	var up, down, abstained int
	var upFactors, downFactors []string
	for _, v := range votes {
		sig.Reasons = append(sig.Reasons, v.reason)
		switch v.direction {
		case model.DirectionUp:
			up++
			upFactors = append(upFactors, v.factor)
		case model.DirectionDown:
			down++
			downFactors = append(downFactors, v.factor)
		default:
			abstained++
		}
	}
	sig.UpVotes, sig.DownVotes, sig.Abstained = up, down, abstained

	winner, winnerVotes, loserVotes := model.DirectionHold, 0, 0
	if up > down {
		winner, winnerVotes, loserVotes = model.DirectionUp, up, down
		sig.Factors = upFactors
	} else if down > up {
		winner, winnerVotes, loserVotes = model.DirectionDown, down, up
		sig.Factors = downFactors
	}

	if winner == model.DirectionHold {
		sig.Factors = nil
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("mixed signals: %d up, %d down", up, down))
		return sig
	}
	if winnerVotes < e.cfg.MinAlignedFactors {
		sig.Factors = nil
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("only %d of %d factors aligned (need %d)",
			winnerVotes, winnerVotes+loserVotes, e.cfg.MinAlignedFactors))
		return sig
	}

	sig.Direction = winner
	if loserVotes == 0 {
		sig.Confidence = model.ConfidenceHigh
	} else {
		sig.Confidence = model.ConfidenceMedium
	}
	return sig
}

func (e *Evaluator) voteVWAP(f model.FeatureSnapshot) vote {
	v := vote{factor: FactorVWAP, direction: model.DirectionHold}
	if !f.VWAPValid {
		v.reason = "VWAP: insufficient data"
		return v
	}
	switch {
	case f.VWAPDeviationPct > e.cfg.VWAPThresholdPct:
		v.direction = model.DirectionUp
		v.reason = fmt.Sprintf("price above VWAP (+%.2f%%)", f.VWAPDeviationPct)
	case f.VWAPDeviationPct < -e.cfg.VWAPThresholdPct:
		v.direction = model.DirectionDown
		v.reason = fmt.Sprintf("price below VWAP (%.2f%%)", f.VWAPDeviationPct)
	default:
		v.reason = fmt.Sprintf("VWAP neutral (%.2f%%)", f.VWAPDeviationPct)
	}
	return v
}

func (e *Evaluator) voteRSI(f model.FeatureSnapshot) vote {
	v := vote{factor: FactorRSI, direction: model.DirectionHold}
	if !f.RSIValid {
		v.reason = "RSI: insufficient data"
		return v
	}
	switch {
	case f.RSI >= e.cfg.RSIBullishLow && f.RSI <= e.cfg.RSIBullishHigh:
		v.direction = model.DirectionUp
		v.reason = fmt.Sprintf("RSI bullish (%.1f)", f.RSI)
	case f.RSI >= e.cfg.RSIBearishLow && f.RSI < e.cfg.RSIBearishHigh:
		v.direction = model.DirectionDown
		v.reason = fmt.Sprintf("RSI bearish (%.1f)", f.RSI)
	case f.RSI > e.cfg.RSIBullishHigh:
		v.reason = fmt.Sprintf("RSI overbought (%.1f)", f.RSI)
	default:
		v.reason = fmt.Sprintf("RSI oversold (%.1f)", f.RSI)
	}
	return v
}

func (e *Evaluator) voteMomentum(f model.FeatureSnapshot) vote {
	v := vote{factor: FactorMomentum, direction: model.DirectionHold}
	if !f.MomentumValid {
		v.reason = "momentum: insufficient data"
		return v
	}
	switch f.Momentum {
	case model.MomentumUp:
		v.direction = model.DirectionUp
		v.reason = fmt.Sprintf("momentum positive (+%.3f%%)", f.MomentumPct)
	case model.MomentumDown:
		v.direction = model.DirectionDown
		v.reason = fmt.Sprintf("momentum negative (%.3f%%)", f.MomentumPct)
	default:
		v.reason = fmt.Sprintf("momentum flat (%.3f%%)", f.MomentumPct)
	}
	return v
}
