// Package metrics exposes Prometheus metrics and a health endpoint for
// the trader.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the decision loop.
type Metrics struct {
	SamplesTotal   prometheus.Counter
	FeedReconnects prometheus.Counter
	DroppedSamples prometheus.Counter
	DataGapsTotal  prometheus.Counter

	SignalsTotal    *prometheus.CounterVec // labels: direction, confidence
	AdmissionsTotal prometheus.Counter
	RejectionsTotal *prometheus.CounterVec // labels: reason
	ResolutionsWon  prometheus.Counter
	ResolutionsLost prometheus.Counter
	HaltsTotal      prometheus.Counter

	ExecutionFailures prometheus.Counter

	BalanceCents   prometheus.Gauge
	DailyDrawdown  prometheus.Gauge
	SizeMultiplier prometheus.Gauge
	OpenPositions  prometheus.Gauge

	TickDuration prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_samples_total",
			Help: "Total price samples received from the feed",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_feed_reconnects_total",
			Help: "Total feed reconnections",
		}),
		DroppedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_dropped_samples_total",
			Help: "Samples rejected (out of order or channel full)",
		}),
		DataGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_data_gaps_total",
			Help: "Ticks forced to HOLD by a stale feed",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Signals evaluated, by direction and confidence",
		}, []string{"direction", "confidence"}),
		AdmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_admissions_total",
			Help: "Signals admitted by the risk gate",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_rejections_total",
			Help: "Signals rejected by the risk gate, by reason",
		}, []string{"reason"}),
		ResolutionsWon: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_resolutions_won_total",
			Help: "Positions settled as wins",
		}),
		ResolutionsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_resolutions_lost_total",
			Help: "Positions settled as losses",
		}),
		HaltsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_halts_total",
			Help: "Trading halts triggered",
		}),
		ExecutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_execution_failures_total",
			Help: "Gateway submissions that failed or were refused",
		}),
		BalanceCents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_balance_cents",
			Help: "Current account balance in cents",
		}),
		DailyDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_daily_drawdown",
			Help: "Current daily drawdown as a fraction of the day-start balance",
		}),
		SizeMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_size_multiplier",
			Help: "Current streak-based position size multiplier",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Currently open positions",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_tick_duration_seconds",
			Help:    "Wall time of one decision tick",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	prometheus.MustRegister(
		m.SamplesTotal,
		m.FeedReconnects,
		m.DroppedSamples,
		m.DataGapsTotal,
		m.SignalsTotal,
		m.AdmissionsTotal,
		m.RejectionsTotal,
		m.ResolutionsWon,
		m.ResolutionsLost,
		m.HaltsTotal,
		m.ExecutionFailures,
		m.BalanceCents,
		m.DailyDrawdown,
		m.SizeMultiplier,
		m.OpenPositions,
		m.TickDuration,
	)

	return m
}

// HealthStatus represents the trader's health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastSampleTime time.Time `json:"last_sample_time"`
	RedisConnected bool      `json:"redis_connected"`
	WindowKnown    bool      `json:"window_known"`

	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastSampleTime(t time.Time) {
	h.mu.Lock()
	h.LastSampleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetWindowKnown(v bool) {
	h.mu.Lock()
	h.WindowKnown = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if rdb != nil {
					probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
					h.CheckRedis(probeCtx, rdb)
					cancel()
				}
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	sampleAge := ""
	if !h.LastSampleTime.IsZero() {
		sampleAge = time.Since(h.LastSampleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		FeedConnected  bool    `json:"feed_connected"`
		LastSampleTime string  `json:"last_sample_time"`
		SampleAge      string  `json:"sample_age"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		WindowKnown    bool    `json:"window_known"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:  h.FeedConnected,
		LastSampleTime: h.LastSampleTime.Format(time.RFC3339),
		SampleAge:      sampleAge,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		WindowKnown:    h.WindowKnown,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
