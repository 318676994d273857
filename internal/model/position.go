package model

import (
	"fmt"
	"time"
)

// PositionStatus is the lifecycle state of a position.
// OPEN transitions to exactly one of WON or LOST at window resolution.
type PositionStatus string

const (
	PositionOpen PositionStatus = "OPEN"
	PositionWon  PositionStatus = "WON"
	PositionLost PositionStatus = "LOST"
)

// Position is a stake on one direction of a binary window. All money is
// int64 cents to avoid floating-point drift in balance accounting.
type Position struct {
	ID         string         `json:"id"`
	WindowID   string         `json:"window_id"`
	Direction  Direction      `json:"direction"`
	EntryPrice float64        `json:"entry_price"` // outcome token price in [0,1]
	Size       int64          `json:"size"`        // stake in cents
	Confidence Confidence     `json:"confidence_at_entry"`
	Status     PositionStatus `json:"status"`
	PnL        int64          `json:"pnl"` // cents, 0 while OPEN
	OrderID    string         `json:"order_id"`
	OpenedAt   time.Time      `json:"opened_at"`
	ResolvedAt time.Time      `json:"resolved_at,omitempty"`
}

// Resolved reports whether the position has reached a terminal status.
func (p *Position) Resolved() bool {
	return p.Status == PositionWon || p.Status == PositionLost
}

// FormatUSD renders cents as a dollar string for logs and notifications.
func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
