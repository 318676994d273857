// Package redis publishes the trader's live state and audit stream and
// carries the remote control channel shared with the status bot.
//
// Writes go through a circuit breaker: a dead Redis degrades the trader
// to local-only operation, it never blocks the decision loop.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"polytraderv1/internal/model"
)

const (
	signalStreamKey  = "trader:signals"
	statusKey        = "trader:status"
	controlHaltKey   = "trader:control:halt"
	signalStreamCap  = 5000 // ~3.5 days of 1m ticks
	defaultStatusTTL = 10 * time.Minute
)

// Config configures the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store wraps the Redis client with the trader's key schema.
type Store struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{
		client:  client,
		breaker: NewCircuitBreaker(5, 10*time.Second),
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// AppendSignal publishes one signal record to the audit stream. Implements
// model.SignalLog; failures are absorbed by the breaker and logged.
func (s *Store) AppendSignal(rec model.SignalRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.breaker.Execute(func() error {
		return s.client.XAdd(ctx, &goredis.XAddArgs{
			Stream:       signalStreamKey,
			MaxLenApprox: signalStreamCap,
			Values: map[string]interface{}{
				"ts":         rec.TS.UTC().Format(time.RFC3339),
				"window_id":  rec.WindowID,
				"price":      strconv.FormatFloat(rec.Price, 'f', 2, 64),
				"rsi":        strconv.FormatFloat(rec.RSI, 'f', 2, 64),
				"rsi_valid":  strconv.FormatBool(rec.RSIValid),
				"vwap_dev":   strconv.FormatFloat(rec.VWAPDeviationPct, 'f', 4, 64),
				"momentum":   string(rec.Momentum),
				"direction":  string(rec.Direction),
				"confidence": string(rec.Confidence),
				"action":     rec.Action,
			},
		}).Err()
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] signal publish failed: %v", err)
	}
	return err
}

// StatusSnapshot is the live state published for the status bot.
type StatusSnapshot struct {
	Mode            string    `json:"mode"`
	BalanceCents    int64     `json:"balance_cents"`
	DailyPnLCents   int64     `json:"daily_pnl_cents"`
	TradesToday     int       `json:"trades_today"`
	OpenPositions   int       `json:"open_positions"`
	SizeMultiplier  float64   `json:"size_multiplier"`
	HaltedUntil     time.Time `json:"halted_until,omitempty"`
	HaltReason      string    `json:"halt_reason,omitempty"`
	CurrentWindowID string    `json:"current_window_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PublishStatus writes the current status snapshot with a TTL so a dead
// trader reads as stale, not healthy.
func (s *Store) PublishStatus(ctx context.Context, snap StatusSnapshot) error {
	snap.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.breaker.Execute(func() error {
		return s.client.Set(ctx, statusKey, data, defaultStatusTTL).Err()
	})
}

// ReadStatus fetches the latest status snapshot. Returns false when no
// fresh snapshot exists.
func (s *Store) ReadStatus(ctx context.Context) (StatusSnapshot, bool, error) {
	data, err := s.client.Get(ctx, statusKey).Bytes()
	if err == goredis.Nil {
		return StatusSnapshot{}, false, nil
	}
	if err != nil {
		return StatusSnapshot{}, false, err
	}
	var snap StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return StatusSnapshot{}, false, err
	}
	return snap, true, nil
}

// HaltCommand is a remote halt request set by the status bot.
type HaltCommand struct {
	Reason   string    `json:"reason"`
	Until    time.Time `json:"until"`
	IssuedBy string    `json:"issued_by"`
	IssuedAt time.Time `json:"issued_at"`
}

// RequestHalt sets the remote halt flag. The trader applies it on its
// next tick.
func (s *Store) RequestHalt(ctx context.Context, cmd HaltCommand) error {
	cmd.IssuedAt = time.Now().UTC()
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	ttl := time.Until(cmd.Until)
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.client.Set(ctx, controlHaltKey, data, ttl).Err()
}

// ClearHalt removes the remote halt flag.
func (s *Store) ClearHalt(ctx context.Context) error {
	return s.client.Del(ctx, controlHaltKey).Err()
}

// PendingHalt reads the remote halt flag if one is set.
func (s *Store) PendingHalt(ctx context.Context) (HaltCommand, bool, error) {
	data, err := s.client.Get(ctx, controlHaltKey).Bytes()
	if err == goredis.Nil {
		return HaltCommand{}, false, nil
	}
	if err != nil {
		return HaltCommand{}, false, err
	}
	var cmd HaltCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return HaltCommand{}, false, err
	}
	return cmd, true, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
