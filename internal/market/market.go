// Package market discovers active binary windows and reports their
// resolved outcomes via the market data HTTP APIs.
//
// Discovery queries the events endpoint by series ID and picks the
// soonest-ending live window. Quoted prices come from the order-book API
// because the event feed's cached prices lag; the cached prices remain as
// fallback.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"polytraderv1/internal/model"
)

// Config holds the API endpoints and series selector.
type Config struct {
	GammaAPIURL string
	CLOBAPIURL  string
	SeriesID    int
}

// Client implements model.MarketDiscovery and model.OutcomeOracle.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a market client.
func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// gammaEvent is the subset of the events payload we consume. Token IDs and
// outcome prices arrive as JSON-encoded string arrays inside strings.
type gammaEvent struct {
	Title   string        `json:"title"`
	Slug    string        `json:"slug"`
	EndDate string        `json:"endDate"`
	Markets []gammaMarket `json:"markets"`
}

type gammaMarket struct {
	ConditionID   string `json:"conditionId"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	OutcomePrices string `json:"outcomePrices"`
	Closed        bool   `json:"closed"`
}

// ActiveWindow returns the soonest-ending live window of the configured
// series, with outcome prices refreshed from the order-book API.
func (c *Client) ActiveWindow(ctx context.Context, now time.Time) (*model.IntervalWindow, error) {
	q := url.Values{}
	q.Set("series_id", strconv.Itoa(c.cfg.SeriesID))
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", "50")

	var events []gammaEvent
	if err := c.getJSON(ctx, c.cfg.GammaAPIURL+"/events?"+q.Encode(), &events); err != nil {
		return nil, fmt.Errorf("market: list events: %w", err)
	}

	windows := make([]*model.IntervalWindow, 0, len(events))
	for i := range events {
		w, err := eventToWindow(&events[i])
		if err != nil {
			continue
		}
		if !w.End.After(now) {
			continue
		}
		windows = append(windows, w)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("market: no live window for series %d", c.cfg.SeriesID)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].End.Before(windows[j].End) })
	w := windows[0]

	// Quoted event prices are cached; prefer the live book.
	if p, err := c.tokenPrice(ctx, w.UpToken); err == nil {
		w.UpPrice = p
	}
	if p, err := c.tokenPrice(ctx, w.DownToken); err == nil {
		w.DownPrice = p
	}
	return w, nil
}

// eventToWindow normalizes one event into a window. The window start is
// derived from the end, since the schedule is a fixed 15-minute grid.
func eventToWindow(ev *gammaEvent) (*model.IntervalWindow, error) {
	if len(ev.Markets) == 0 {
		return nil, fmt.Errorf("market: event %q has no markets", ev.Slug)
	}
	m := ev.Markets[0]

	end, err := time.Parse(time.RFC3339, ev.EndDate)
	if err != nil {
		return nil, fmt.Errorf("market: event %q end date: %w", ev.Slug, err)
	}
	end = end.UTC()

	tokens, err := decodeStringArray(m.ClobTokenIDs)
	if err != nil || len(tokens) < 2 {
		return nil, fmt.Errorf("market: event %q token ids: %v", ev.Slug, err)
	}

	w := &model.IntervalWindow{
		ID:        m.ConditionID,
		Title:     ev.Title,
		Slug:      ev.Slug,
		Start:     end.Add(-15 * time.Minute),
		End:       end,
		UpToken:   tokens[0],
		DownToken: tokens[1],
	}
	if prices, err := decodeFloatArray(m.OutcomePrices); err == nil && len(prices) >= 2 {
		w.UpPrice = prices[0]
		w.DownPrice = prices[1]
	}
	return w, nil
}

// Outcome reports the winning direction of a resolved window. Until the
// market is closed and settled decisively it returns ErrOracleUnavailable.
func (c *Client) Outcome(ctx context.Context, window *model.IntervalWindow) (model.Direction, error) {
	q := url.Values{}
	q.Set("condition_ids", window.ID)

	var markets []gammaMarket
	if err := c.getJSON(ctx, c.cfg.GammaAPIURL+"/markets?"+q.Encode(), &markets); err != nil {
		return model.DirectionHold, fmt.Errorf("market: fetch outcome: %w", err)
	}
	if len(markets) == 0 {
		return model.DirectionHold, fmt.Errorf("market: window %s not found", window.ID)
	}
	m := markets[0]
	if !m.Closed {
		return model.DirectionHold, model.ErrOracleUnavailable
	}

	prices, err := decodeFloatArray(m.OutcomePrices)
	if err != nil || len(prices) < 2 {
		return model.DirectionHold, model.ErrOracleUnavailable
	}
	// Settled markets pin the winner at (or near) 1.
	switch {
	case prices[0] >= 0.95:
		return model.DirectionUp, nil
	case prices[1] >= 0.95:
		return model.DirectionDown, nil
	default:
		return model.DirectionHold, model.ErrOracleUnavailable
	}
}

// tokenPrice fetches the live buy price of an outcome token.
func (c *Client) tokenPrice(ctx context.Context, tokenID string) (float64, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	q.Set("side", "buy")

	var resp struct {
		Price string `json:"price"`
	}
	if err := c.getJSON(ctx, c.cfg.CLOBAPIURL+"/price?"+q.Encode(), &resp); err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("market: bad price %q for token %s", resp.Price, tokenID)
	}
	return p, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[market] %s returned %d: %s", rawURL, resp.StatusCode, body)
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeStringArray parses a JSON-encoded string array (the events API
// wraps arrays in strings).
func decodeStringArray(s string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeFloatArray(s string) ([]float64, error) {
	raw, err := decodeStringArray(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
