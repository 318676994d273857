// Package scorer is the optional external direction-scoring port.
//
// The scorer's opinion enters the convergence vote as one factor among
// several. When the service is disabled or unreachable the factor simply
// abstains, so the trader runs unchanged without it.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"polytraderv1/internal/model"
)

// Config holds the scoring service endpoint.
type Config struct {
	URL    string
	APIKey string
}

// HTTPScorer queries an external scoring service for a directional vote.
type HTTPScorer struct {
	cfg  Config
	http *http.Client
}

// New creates an HTTPScorer.
func New(cfg Config) *HTTPScorer {
	return &HTTPScorer{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type scoreRequest struct {
	Price            float64 `json:"price"`
	RSI              float64 `json:"rsi"`
	RSIValid         bool    `json:"rsi_valid"`
	VWAPDeviationPct float64 `json:"vwap_deviation_pct"`
	MomentumPct      float64 `json:"momentum_pct"`
	WindowTitle      string  `json:"window_title"`
	MinutesLeft      float64 `json:"minutes_left"`
}

type scoreResponse struct {
	Direction  string `json:"direction"`  // UP, DOWN, or HOLD
	Confidence string `json:"confidence"` // HIGH, MEDIUM, LOW
	Rationale  string `json:"rationale"`
}

// Score requests a vote for the current features. Any failure maps to
// ErrScorerUnavailable: the caller treats the factor as abstaining.
func (s *HTTPScorer) Score(ctx context.Context, features model.FeatureSnapshot, window *model.IntervalWindow) (model.ScorerVote, error) {
	req := scoreRequest{
		Price:            features.Price,
		RSI:              features.RSI,
		RSIValid:         features.RSIValid,
		VWAPDeviationPct: features.VWAPDeviationPct,
		MomentumPct:      features.MomentumPct,
	}
	if window != nil {
		req.WindowTitle = window.Title
		req.MinutesLeft = time.Until(window.End).Minutes()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.ScorerVote{}, model.ErrScorerUnavailable
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/score", bytes.NewReader(body))
	if err != nil {
		return model.ScorerVote{}, model.ErrScorerUnavailable
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return model.ScorerVote{}, fmt.Errorf("%w: %v", model.ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.ScorerVote{}, fmt.Errorf("%w: status %d", model.ErrScorerUnavailable, resp.StatusCode)
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return model.ScorerVote{}, fmt.Errorf("%w: %v", model.ErrScorerUnavailable, err)
	}

	dir := model.Direction(sr.Direction)
	if dir != model.DirectionUp && dir != model.DirectionDown && dir != model.DirectionHold {
		return model.ScorerVote{}, fmt.Errorf("%w: bad direction %q", model.ErrScorerUnavailable, sr.Direction)
	}
	conf := model.Confidence(sr.Confidence)
	if conf != model.ConfidenceHigh && conf != model.ConfidenceMedium && conf != model.ConfidenceLow {
		conf = model.ConfidenceLow
	}
	return model.ScorerVote{Direction: dir, Confidence: conf, Rationale: sr.Rationale}, nil
}

// Disabled is the no-op scorer used when the service is not configured.
// Every call abstains.
type Disabled struct{}

// Score always returns ErrScorerUnavailable.
func (Disabled) Score(ctx context.Context, features model.FeatureSnapshot, window *model.IntervalWindow) (model.ScorerVote, error) {
	return model.ScorerVote{}, model.ErrScorerUnavailable
}
