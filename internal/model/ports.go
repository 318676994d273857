package model

import (
	"context"
	"time"
)

// ── Collaborator Port Interfaces ──
// The decision core talks to the outside world only through these narrow
// interfaces. Concrete implementations (WebSocket feed, market HTTP API,
// CLOB gateway, CSV/redis logs, Telegram) live in their own packages.

// PriceFeed produces a time-ordered stream of price samples. Implementations
// reconnect on failure and report staleness so the core can fail closed on
// data gaps.
type PriceFeed interface {
	// Run streams samples into out until ctx is cancelled.
	Run(ctx context.Context, out chan<- PriceSample) error

	// LastSampleAt returns the arrival time of the most recent sample,
	// zero if nothing has arrived yet.
	LastSampleAt() time.Time
}

// MarketDiscovery locates the currently active binary window. Queried once
// per window, not per tick.
type MarketDiscovery interface {
	ActiveWindow(ctx context.Context, now time.Time) (*IntervalWindow, error)
}

// OutcomeOracle reports the winning direction of a resolved window.
// Returns ErrOracleUnavailable until the outcome is final.
type OutcomeOracle interface {
	Outcome(ctx context.Context, window *IntervalWindow) (Direction, error)
}

// OrderIntent is an admitted, sized order handed to the execution gateway.
type OrderIntent struct {
	WindowID  string    `json:"window_id"`
	Direction Direction `json:"direction"`
	Token     string    `json:"token"` // outcome token to buy
	Size      int64     `json:"size"`  // stake in cents
	Price     float64   `json:"price"` // limit price in [0,1]
}

// Fill is a confirmed execution.
type Fill struct {
	OrderID   string    `json:"order_id"`
	FillPrice float64   `json:"fill_price"`
	FilledAt  time.Time `json:"filled_at"`
}

// ExecutionGateway submits order intents to the market. A non-accept
// response surfaces as *ExecutionError; the core never retries silently.
type ExecutionGateway interface {
	Submit(ctx context.Context, intent OrderIntent) (Fill, error)
	Cancel(ctx context.Context, orderID string) error
}

// ScorerVote is an external model's directional opinion. It participates as
// one factor vote among several, never authoritative alone.
type ScorerVote struct {
	Direction  Direction  `json:"direction"`
	Confidence Confidence `json:"confidence"`
	Rationale  string     `json:"rationale"`
}

// DirectionScorer is the optional AI/oracle scoring port. Implementations
// return ErrScorerUnavailable when no vote can be produced; the evaluator
// then treats the factor as abstaining.
type DirectionScorer interface {
	Score(ctx context.Context, features FeatureSnapshot, window *IntervalWindow) (ScorerVote, error)
}

// ── Append-Only Log Records ──
// Stable schemas: fields are only ever added, never renamed or removed.

// SignalRecord is one evaluation tick's audit entry.
type SignalRecord struct {
	TS               time.Time  `json:"ts"`
	WindowID         string     `json:"window_id"`
	Price            float64    `json:"price"`
	RSI              float64    `json:"rsi"`
	RSIValid         bool       `json:"rsi_valid"`
	VWAPDeviationPct float64    `json:"vwap_deviation_pct"`
	Momentum         Momentum   `json:"momentum_direction"`
	Direction        Direction  `json:"signal_direction"`
	Confidence       Confidence `json:"confidence"`
	Action           string     `json:"action_taken"` // ADMITTED, HOLD, or rejection reason
}

// TradeRecord is one admission's (or rejection's) audit entry.
type TradeRecord struct {
	TS              time.Time      `json:"ts"`
	WindowID        string         `json:"window_id"`
	Direction       Direction      `json:"direction"`
	Size            int64          `json:"size"` // cents
	EntryPrice      float64        `json:"entry_price"`
	Confidence      Confidence     `json:"confidence"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Status          PositionStatus `json:"status,omitempty"`
	PnL             int64          `json:"pnl"` // cents
}

// SignalLog is the append-only sink for signal records.
type SignalLog interface {
	AppendSignal(rec SignalRecord) error
}

// TradeLog is the append-only sink for trade records.
type TradeLog interface {
	AppendTrade(rec TradeRecord) error
}
