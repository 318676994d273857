// Package feed streams spot trades from the exchange WebSocket into
// normalized price samples.
//
// The feed owns its connection lifecycle: it dials, reads until the
// connection drops, then reconnects with the configured retry strategy.
// Staleness is observable through LastSampleAt so the decision core can
// fail closed when the stream goes quiet.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"polytraderv1/internal/model"
)

// Retry strategies.
const (
	StrategySimple      = "simple"
	StrategyExponential = "exponential"
)

// Config holds the WebSocket endpoint and reconnect policy.
type Config struct {
	URL           string
	RetryMax      int
	RetryDelay    time.Duration
	RetryStrategy string // simple | exponential
}

// tradeEvent is the exchange's combined-stream trade payload. Prices and
// quantities arrive as decimal strings.
type tradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // epoch millis; must be declared so "E" is not case-folded onto "e"
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"` // epoch millis
}

// WSFeed is a reconnecting trade-stream client implementing model.PriceFeed.
type WSFeed struct {
	cfg    Config
	dialer *websocket.Dialer

	mu           sync.Mutex
	lastSampleAt time.Time
	reconnects   int

	// OnReconnect is called after each successful re-dial, for metrics.
	OnReconnect func()
}

// New creates a WSFeed with the given config.
func New(cfg Config) *WSFeed {
	return &WSFeed{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Run dials the stream and pushes samples into out until ctx is cancelled
// or the retry budget is exhausted.
func (f *WSFeed) Run(ctx context.Context, out chan<- model.PriceSample) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, resp, err := f.dialer.DialContext(ctx, f.cfg.URL, nil)
		if err != nil {
			attempt++
			if resp != nil {
				log.Printf("[feed] dial failed, status: %s", resp.Status)
			}
			if attempt > f.cfg.RetryMax {
				return fmt.Errorf("feed: retry budget exhausted after %d attempts: %w", attempt-1, err)
			}
			delay := f.retryDelay(attempt)
			log.Printf("[feed] reconnect attempt %d/%d in %s", attempt, f.cfg.RetryMax, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if attempt > 0 {
			f.mu.Lock()
			f.reconnects++
			f.mu.Unlock()
			if f.OnReconnect != nil {
				f.OnReconnect()
			}
		}
		attempt = 0
		log.Printf("[feed] connected to %s", f.cfg.URL)

		err = f.readLoop(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[feed] connection lost: %v", err)
		attempt = 1
	}
}

func (f *WSFeed) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- model.PriceSample) error {
	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		sample, ok := parseTrade(message)
		if !ok {
			continue
		}
		f.mu.Lock()
		f.lastSampleAt = time.Now()
		f.mu.Unlock()

		select {
		case out <- sample:
		case <-ctx.Done():
			return ctx.Err()
		default:
			log.Println("[feed] sample channel full, dropping sample")
		}
	}
}

// parseTrade converts one stream message into a sample. Non-trade frames
// and malformed numbers are skipped.
func parseTrade(message []byte) (model.PriceSample, bool) {
	var ev tradeEvent
	if err := json.Unmarshal(message, &ev); err != nil || ev.EventType != "trade" {
		return model.PriceSample{}, false
	}
	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil || price <= 0 {
		return model.PriceSample{}, false
	}
	qty, err := strconv.ParseFloat(ev.Quantity, 64)
	if err != nil || qty < 0 {
		return model.PriceSample{}, false
	}
	return model.PriceSample{
		TS:     time.UnixMilli(ev.TradeTime).UTC(),
		Price:  price,
		Volume: qty,
	}, true
}

// LastSampleAt returns the arrival time of the most recent sample.
func (f *WSFeed) LastSampleAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSampleAt
}

// Reconnects returns the number of successful re-dials.
func (f *WSFeed) Reconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

func (f *WSFeed) retryDelay(attempt int) time.Duration {
	if f.cfg.RetryStrategy == StrategySimple {
		return f.cfg.RetryDelay
	}
	d := f.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d > 2*time.Minute {
		d = 2 * time.Minute
	}
	return d
}
