// Package config loads all service configuration from environment
// variables (with an optional .env file for local runs).
//
// The risk and convergence thresholds are deliberately configuration, not
// constants: the defaults below are the conservative set, and every one of
// them can be overridden per deployment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the full configuration surface for the trader and statusbot.
type Config struct {
	// Mode selects paper (simulated fills) or live execution.
	Mode string `envconfig:"TRADER_MODE" default:"paper"`

	// Account
	InitialBalanceCents int64 `envconfig:"INITIAL_BALANCE_CENTS" default:"50000"` // $500

	// Position sizing
	BasePositionPct float64 `envconfig:"BASE_POSITION_PCT" default:"0.10"`
	MaxPositionPct  float64 `envconfig:"MAX_POSITION_PCT" default:"0.15"`
	MinTradeCents   int64   `envconfig:"MIN_TRADE_CENTS" default:"100"` // $1 minimum

	// Size multiplier band and streak steps
	MultiplierMin  float64 `envconfig:"SIZE_MULTIPLIER_MIN" default:"0.5"`
	MultiplierMax  float64 `envconfig:"SIZE_MULTIPLIER_MAX" default:"1.5"`
	MultiplierStep float64 `envconfig:"SIZE_MULTIPLIER_STEP" default:"0.2"`

	// Risk limits
	MaxConcurrentPositions   int           `envconfig:"MAX_CONCURRENT_POSITIONS" default:"2"`
	DailyTradeLimit          int           `envconfig:"DAILY_TRADE_LIMIT" default:"8"`
	DailyDrawdownHaltPct     float64       `envconfig:"DAILY_DRAWDOWN_HALT_PCT" default:"0.10"`
	DrawdownCooldown         time.Duration `envconfig:"DRAWDOWN_COOLDOWN" default:"4h"`
	LossStepDownStreak       int           `envconfig:"CONSECUTIVE_LOSS_STEPDOWN" default:"2"`
	ConsecutiveLossThreshold int           `envconfig:"CONSECUTIVE_LOSS_THRESHOLD" default:"3"`
	ConsecutiveWinThreshold  int           `envconfig:"CONSECUTIVE_WIN_THRESHOLD" default:"3"`
	AllowOppositePositions   bool          `envconfig:"ALLOW_OPPOSITE_POSITIONS" default:"false"`

	// Entry window within the 15-minute interval (inclusive minutes)
	IntervalMinutes  int `envconfig:"INTERVAL_MINUTES" default:"15"`
	EntryOpenMinute  int `envconfig:"ENTRY_OPEN_MINUTE" default:"2"`
	EntryCloseMinute int `envconfig:"ENTRY_CLOSE_MINUTE" default:"10"`

	// Signal convergence
	MinConfidence     string  `envconfig:"MIN_CONFIDENCE_TO_TRADE" default:"MEDIUM"`
	MinAlignedFactors int     `envconfig:"MIN_ALIGNED_FACTORS" default:"2"`
	VWAPThresholdPct  float64 `envconfig:"VWAP_THRESHOLD_PCT" default:"0.15"`
	RSIBullishLow     float64 `envconfig:"RSI_BULLISH_LOW" default:"50"`
	RSIBullishHigh    float64 `envconfig:"RSI_BULLISH_HIGH" default:"70"`
	RSIBearishLow     float64 `envconfig:"RSI_BEARISH_LOW" default:"30"`
	RSIBearishHigh    float64 `envconfig:"RSI_BEARISH_HIGH" default:"50"`

	// Indicators
	RSIPeriod           int           `envconfig:"RSI_PERIOD" default:"14"`
	MomentumLookback    time.Duration `envconfig:"MOMENTUM_LOOKBACK" default:"60s"`
	MomentumDeadBandPct float64       `envconfig:"MOMENTUM_DEADBAND_PCT" default:"0.02"`
	MinDataPoints       int           `envconfig:"MIN_DATA_POINTS" default:"30"`

	// Cadence and data-gap policy
	TickInterval      time.Duration `envconfig:"TICK_INTERVAL" default:"60s"`
	StaleGapThreshold time.Duration `envconfig:"STALE_GAP_THRESHOLD" default:"90s"`

	// Price feed
	FeedURL           string        `envconfig:"FEED_URL" default:"wss://stream.binance.com:9443/ws/btcusdt@trade"`
	FeedRetryMax      int           `envconfig:"FEED_RETRY_MAX" default:"10"`
	FeedRetryDelay    time.Duration `envconfig:"FEED_RETRY_DELAY" default:"2s"`
	FeedRetryStrategy string        `envconfig:"FEED_RETRY_STRATEGY" default:"exponential"` // simple | exponential

	// Market discovery / outcome API
	GammaAPIURL string `envconfig:"GAMMA_API_URL" default:"https://gamma-api.polymarket.com"`
	CLOBAPIURL  string `envconfig:"CLOB_API_URL" default:"https://clob.polymarket.com"`
	SeriesID    int    `envconfig:"BTC_15M_SERIES_ID" default:"10192"`

	// Execution gateway
	GatewayAPIKey    string        `envconfig:"GATEWAY_API_KEY"`
	GatewayRetryMax  int           `envconfig:"GATEWAY_RETRY_MAX" default:"3"`
	GatewayRetryWait time.Duration `envconfig:"GATEWAY_RETRY_WAIT" default:"500ms"`

	// Optional AI direction scorer
	ScorerEnabled bool   `envconfig:"SCORER_ENABLED" default:"false"`
	ScorerURL     string `envconfig:"SCORER_URL"`
	ScorerAPIKey  string `envconfig:"SCORER_API_KEY"`

	// Infrastructure
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/trades.db"`
	SignalCSVPath string `envconfig:"SIGNAL_CSV_PATH" default:"data/signals.csv"`
	TradeCSVPath  string `envconfig:"TRADE_CSV_PATH" default:"data/trades.csv"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`

	// Notifications and remote control
	TelegramBotToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID    string `envconfig:"TELEGRAM_CHAT_ID"`
	WebhookURL        string `envconfig:"WEBHOOK_URL"`
	ControlTOTPSecret string `envconfig:"CONTROL_TOTP_SECRET"`
}

// Load reads configuration from the environment. A .env file is applied
// first if present (local development); missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the structural invariants the risk core depends on.
func (c *Config) Validate() error {
	if c.Mode != "paper" && c.Mode != "live" {
		return fmt.Errorf("config: TRADER_MODE must be paper or live, got %q", c.Mode)
	}
	if c.BasePositionPct <= 0 || c.BasePositionPct > c.MaxPositionPct {
		return fmt.Errorf("config: BASE_POSITION_PCT %.3f must be in (0, MAX_POSITION_PCT=%.3f]",
			c.BasePositionPct, c.MaxPositionPct)
	}
	if c.MaxPositionPct >= 1 {
		return fmt.Errorf("config: MAX_POSITION_PCT %.3f must be below 1", c.MaxPositionPct)
	}
	if c.MultiplierMin <= 0 || c.MultiplierMin > 1 || c.MultiplierMax < 1 {
		return fmt.Errorf("config: size multiplier band [%.2f, %.2f] must straddle 1",
			c.MultiplierMin, c.MultiplierMax)
	}
	if c.MultiplierStep <= 0 {
		return fmt.Errorf("config: SIZE_MULTIPLIER_STEP must be positive")
	}
	if c.EntryOpenMinute < 0 || c.EntryCloseMinute >= c.IntervalMinutes ||
		c.EntryOpenMinute > c.EntryCloseMinute {
		return fmt.Errorf("config: entry window [%d, %d] must fit inside a %d-minute interval",
			c.EntryOpenMinute, c.EntryCloseMinute, c.IntervalMinutes)
	}
	if c.MinConfidence != "HIGH" && c.MinConfidence != "MEDIUM" && c.MinConfidence != "LOW" {
		return fmt.Errorf("config: MIN_CONFIDENCE_TO_TRADE must be HIGH, MEDIUM or LOW")
	}
	if c.MinAlignedFactors < 1 {
		return fmt.Errorf("config: MIN_ALIGNED_FACTORS must be at least 1")
	}
	if c.DailyDrawdownHaltPct <= 0 || c.DailyDrawdownHaltPct >= 1 {
		return fmt.Errorf("config: DAILY_DRAWDOWN_HALT_PCT must be in (0,1)")
	}
	if c.LossStepDownStreak < 1 || c.LossStepDownStreak > c.ConsecutiveLossThreshold {
		return fmt.Errorf("config: CONSECUTIVE_LOSS_STEPDOWN %d must be in [1, CONSECUTIVE_LOSS_THRESHOLD=%d]",
			c.LossStepDownStreak, c.ConsecutiveLossThreshold)
	}
	if c.Mode == "live" && c.GatewayAPIKey == "" {
		return fmt.Errorf("config: GATEWAY_API_KEY required in live mode")
	}
	return nil
}
