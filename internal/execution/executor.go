// Package execution submits admitted orders to the market.
//
// Two gateways implement the same interface: LiveGateway places real
// orders against the CLOB HTTP API, PaperGateway simulates fills locally.
// Both surface non-accept responses as *model.ExecutionError so the
// decision loop can distinguish "order refused" from transport failure.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"polytraderv1/internal/model"
)

// LiveConfig holds the order API endpoint and retry policy.
type LiveConfig struct {
	BaseURL   string
	APIKey    string
	RetryMax  int
	RetryWait time.Duration
}

// LiveGateway places orders over HTTP, retrying transient failures.
// A definitive rejection (4xx) is never retried.
type LiveGateway struct {
	cfg  LiveConfig
	http *http.Client
}

// NewLiveGateway creates a live order gateway.
func NewLiveGateway(cfg LiveConfig) *LiveGateway {
	return &LiveGateway{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type orderRequest struct {
	TokenID string  `json:"token_id"`
	Side    string  `json:"side"` // always BUY: we buy the predicted outcome
	Size    float64 `json:"size"` // stake in dollars
	Price   float64 `json:"price"`
}

type orderResponse struct {
	Success bool    `json:"success"`
	OrderID string  `json:"orderID"`
	Price   string  `json:"price,omitempty"`
	ErrMsg  string  `json:"errorMsg,omitempty"`
	AvgFill float64 `json:"avg_fill_price,omitempty"`
}

// Submit places a buy order for the intent's outcome token.
func (g *LiveGateway) Submit(ctx context.Context, intent model.OrderIntent) (model.Fill, error) {
	body, err := json.Marshal(orderRequest{
		TokenID: intent.Token,
		Side:    "BUY",
		Size:    float64(intent.Size) / 100,
		Price:   intent.Price,
	})
	if err != nil {
		return model.Fill{}, &model.ExecutionError{Reason: "encode order", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.Fill{}, &model.ExecutionError{Reason: "cancelled", Err: ctx.Err()}
			case <-time.After(g.cfg.RetryWait * time.Duration(attempt)):
			}
			log.Printf("[execution] submit retry %d/%d for %s", attempt, g.cfg.RetryMax, intent.Token)
		}

		fill, retryable, err := g.submitOnce(ctx, body)
		if err == nil {
			return fill, nil
		}
		if !retryable {
			return model.Fill{}, err
		}
		lastErr = err
	}
	return model.Fill{}, lastErr
}

func (g *LiveGateway) submitOnce(ctx context.Context, body []byte) (model.Fill, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return model.Fill{}, false, &model.ExecutionError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return model.Fill{}, true, &model.ExecutionError{Reason: "transport", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode >= 500:
		return model.Fill{}, true, &model.ExecutionError{
			Reason: fmt.Sprintf("server error %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		return model.Fill{}, false, &model.ExecutionError{
			Reason: fmt.Sprintf("order rejected (%d): %s", resp.StatusCode, raw),
		}
	}

	var or orderResponse
	if err := json.Unmarshal(raw, &or); err != nil {
		return model.Fill{}, false, &model.ExecutionError{Reason: "decode response", Err: err}
	}
	if !or.Success {
		return model.Fill{}, false, &model.ExecutionError{Reason: "order not accepted: " + or.ErrMsg}
	}
	return model.Fill{
		OrderID:   or.OrderID,
		FillPrice: or.AvgFill,
		FilledAt:  time.Now().UTC(),
	}, false, nil
}

// Cancel cancels a resting order.
func (g *LiveGateway) Cancel(ctx context.Context, orderID string) error {
	body, _ := json.Marshal(map[string]string{"orderID": orderID})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.cfg.BaseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return &model.ExecutionError{Reason: "build cancel", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return &model.ExecutionError{Reason: "transport", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &model.ExecutionError{Reason: fmt.Sprintf("cancel failed (%d)", resp.StatusCode)}
	}
	return nil
}
