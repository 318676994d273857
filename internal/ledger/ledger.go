// Package ledger tracks open and resolved positions across binary windows.
//
// It is the single authority on position lifecycle: a position is created
// from a confirmed fill, stays OPEN until its window resolves, then settles
// exactly once to WON or LOST with a realized P&L. Resolution is idempotent
// so a replayed outcome can never double-count.
package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"polytraderv1/internal/model"
)

// PayoutModel computes the profit on a winning stake given its size in
// cents and the entry price of the outcome token.
type PayoutModel func(size int64, entryPrice float64) int64

// BinaryPayout is the standard binary-market payout: each share bought at
// entry price pays out $1, so profit = size * (1 - price) / price.
func BinaryPayout(size int64, entryPrice float64) int64 {
	if entryPrice <= 0 || entryPrice >= 1 {
		return 0
	}
	return int64(math.Round(float64(size) * (1 - entryPrice) / entryPrice))
}

// Ledger holds all positions for the current session.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*model.Position
	order     []string // insertion order for stable listings
	seq       int64
	payout    PayoutModel
}

// New creates an empty Ledger settling wins with BinaryPayout.
func New() *Ledger {
	return NewWithPayout(BinaryPayout)
}

// NewWithPayout creates an empty Ledger with a custom payout model.
func NewWithPayout(payout PayoutModel) *Ledger {
	return &Ledger{
		positions: make(map[string]*model.Position),
		payout:    payout,
	}
}

// Open records a new position from a confirmed fill and returns it.
func (l *Ledger) Open(window *model.IntervalWindow, dir model.Direction, size int64, conf model.Confidence, fill model.Fill) model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	pos := model.Position{
		ID:         fmt.Sprintf("pos-%d-%d", fill.FilledAt.Unix(), l.seq),
		WindowID:   window.ID,
		Direction:  dir,
		EntryPrice: fill.FillPrice,
		Size:       size,
		Confidence: conf,
		Status:     model.PositionOpen,
		OrderID:    fill.OrderID,
		OpenedAt:   fill.FilledAt,
	}
	l.positions[pos.ID] = &pos
	l.order = append(l.order, pos.ID)
	return pos
}

// Open positions are returned in insertion order.
func (l *Ledger) OpenPositions() []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Position, 0, len(l.positions))
	for _, id := range l.order {
		if p := l.positions[id]; p.Status == model.PositionOpen {
			out = append(out, *p)
		}
	}
	return out
}

// OpenForWindow returns the open positions staked on the given window.
func (l *Ledger) OpenForWindow(windowID string) []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Position
	for _, id := range l.order {
		if p := l.positions[id]; p.Status == model.PositionOpen && p.WindowID == windowID {
			out = append(out, *p)
		}
	}
	return out
}

// Get returns a snapshot of the position with the given ID.
func (l *Ledger) Get(id string) (model.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[id]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

// Resolve settles a position against the window's winning direction.
// The second return is false when the position was already resolved;
// the caller must not apply the outcome again.
func (l *Ledger) Resolve(id string, winner model.Direction, at time.Time) (model.Position, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[id]
	if !ok {
		return model.Position{}, false, fmt.Errorf("ledger: unknown position %s", id)
	}
	if p.Resolved() {
		return *p, false, nil
	}

	if p.Direction == winner {
		p.Status = model.PositionWon
		p.PnL = l.payout(p.Size, p.EntryPrice)
	} else {
		p.Status = model.PositionLost
		p.PnL = -p.Size
	}
	p.ResolvedAt = at
	return *p, true, nil
}

// ResolveWindow settles every open position on a window and returns the
// freshly settled ones. Already-resolved positions are skipped.
func (l *Ledger) ResolveWindow(windowID string, winner model.Direction, at time.Time) []model.Position {
	var settled []model.Position
	for _, p := range l.OpenForWindow(windowID) {
		res, fresh, err := l.Resolve(p.ID, winner, at)
		if err == nil && fresh {
			settled = append(settled, res)
		}
	}
	return settled
}

// RealizedPnL returns the summed P&L of all resolved positions.
func (l *Ledger) RealizedPnL() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	for _, p := range l.positions {
		if p.Resolved() {
			total += p.PnL
		}
	}
	return total
}
