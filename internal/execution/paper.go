package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"polytraderv1/internal/model"
)

// PaperGateway simulates order execution without touching the market.
// Fills happen instantly at the intent price plus configurable slippage.
type PaperGateway struct {
	mu       sync.Mutex
	fills    []model.Fill
	orderSeq int64

	slippageBps float64 // basis points added to the buy price
}

// NewPaperGateway creates a simulated gateway.
func NewPaperGateway(slippageBps float64) *PaperGateway {
	return &PaperGateway{
		fills:       make([]model.Fill, 0, 256),
		slippageBps: slippageBps,
	}
}

// Submit fills the order immediately at the quoted price plus slippage.
func (p *PaperGateway) Submit(ctx context.Context, intent model.OrderIntent) (model.Fill, error) {
	if err := ctx.Err(); err != nil {
		return model.Fill{}, &model.ExecutionError{Reason: "cancelled", Err: err}
	}
	if intent.Price <= 0 || intent.Price >= 1 {
		return model.Fill{}, &model.ExecutionError{
			Reason: fmt.Sprintf("price %.3f outside (0,1)", intent.Price),
		}
	}

	p.mu.Lock()
	p.orderSeq++
	fillPrice := intent.Price * (1 + p.slippageBps/10000)
	if fillPrice >= 1 {
		fillPrice = intent.Price
	}
	fill := model.Fill{
		OrderID:   fmt.Sprintf("PAPER-%d", p.orderSeq),
		FillPrice: fillPrice,
		FilledAt:  time.Now().UTC(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] filled %s %s size=%s price=%.3f order=%s",
		intent.Direction, intent.Token, model.FormatUSD(intent.Size), fillPrice, fill.OrderID)
	return fill, nil
}

// Cancel is a no-op: paper fills are instantaneous, nothing rests.
func (p *PaperGateway) Cancel(ctx context.Context, orderID string) error {
	return nil
}

// Fills returns a snapshot of all simulated fills.
func (p *PaperGateway) Fills() []model.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}
