package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polytraderv1/config"
	"polytraderv1/internal/execution"
	"polytraderv1/internal/feed"
	"polytraderv1/internal/history"
	"polytraderv1/internal/indicator"
	"polytraderv1/internal/interval"
	"polytraderv1/internal/ledger"
	"polytraderv1/internal/logger"
	"polytraderv1/internal/market"
	"polytraderv1/internal/metrics"
	"polytraderv1/internal/model"
	"polytraderv1/internal/notification"
	"polytraderv1/internal/record"
	"polytraderv1/internal/risk"
	"polytraderv1/internal/scorer"
	sig "polytraderv1/internal/signal"
	redisstore "polytraderv1/internal/store/redis"
	"polytraderv1/internal/trader"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("trader", slog.LevelInfo)
	log.Println("[trader] starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[trader] config: %v", err)
	}
	log.Printf("[trader] mode=%s balance=%s tick=%s", cfg.Mode,
		model.FormatUSD(cfg.InitialBalanceCents), cfg.TickInterval)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Infrastructure ----
	var store *redisstore.Store
	if cfg.RedisAddr != "" {
		store, err = redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[trader] redis unavailable, continuing without it: %v", err)
			store = nil
		} else {
			defer store.Close()
			health.StartLivenessChecker(ctx, store.Client(), 30*time.Second)
		}
	}

	os.MkdirAll("data", 0o755)
	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[trader] journal init failed: %v", err)
	}
	defer journal.Close()

	csvLog := record.NewCSVLog(cfg.SignalCSVPath, cfg.TradeCSVPath)

	signalLogs := []model.SignalLog{csvLog}
	if store != nil {
		signalLogs = append(signalLogs, store)
	}
	tradeLogs := []model.TradeLog{csvLog, journal}

	// ---- Notifications ----
	var channels notification.Fanout
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		channels = append(channels, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[trader] telegram notifications enabled")
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[trader] webhook notifications enabled")
	}
	var notifier notification.Notifier = channels
	if len(channels) == 0 {
		notifier = notification.NewLogNotifier()
	}

	// ---- Collaborators ----
	priceFeed := feed.New(feed.Config{
		URL:           cfg.FeedURL,
		RetryMax:      cfg.FeedRetryMax,
		RetryDelay:    cfg.FeedRetryDelay,
		RetryStrategy: cfg.FeedRetryStrategy,
	})
	priceFeed.OnReconnect = func() {
		prom.FeedReconnects.Inc()
		health.SetFeedConnected(true)
	}

	marketClient := market.New(market.Config{
		GammaAPIURL: cfg.GammaAPIURL,
		CLOBAPIURL:  cfg.CLOBAPIURL,
		SeriesID:    cfg.SeriesID,
	})

	var gateway model.ExecutionGateway
	if cfg.Mode == "live" {
		gateway = execution.NewLiveGateway(execution.LiveConfig{
			BaseURL:   cfg.CLOBAPIURL,
			APIKey:    cfg.GatewayAPIKey,
			RetryMax:  cfg.GatewayRetryMax,
			RetryWait: cfg.GatewayRetryWait,
		})
	} else {
		gateway = execution.NewPaperGateway(5) // 0.05% simulated slippage
	}

	var dirScorer model.DirectionScorer = scorer.Disabled{}
	if cfg.ScorerEnabled && cfg.ScorerURL != "" {
		dirScorer = scorer.New(scorer.Config{URL: cfg.ScorerURL, APIKey: cfg.ScorerAPIKey})
		log.Println("[trader] direction scorer enabled")
	}

	book := ledger.New()
	riskMgr := risk.NewManager(risk.Limits{
		BasePositionPct:          cfg.BasePositionPct,
		MaxPositionPct:           cfg.MaxPositionPct,
		MinTradeCents:            cfg.MinTradeCents,
		MultiplierMin:            cfg.MultiplierMin,
		MultiplierMax:            cfg.MultiplierMax,
		MultiplierStep:           cfg.MultiplierStep,
		MaxConcurrentPositions:   cfg.MaxConcurrentPositions,
		DailyTradeLimit:          cfg.DailyTradeLimit,
		DailyDrawdownHaltPct:     cfg.DailyDrawdownHaltPct,
		DrawdownCooldown:         cfg.DrawdownCooldown,
		ConsecutiveWinThreshold:  cfg.ConsecutiveWinThreshold,
		LossStepDownStreak:       cfg.LossStepDownStreak,
		ConsecutiveLossThreshold: cfg.ConsecutiveLossThreshold,
		AllowOppositePositions:   cfg.AllowOppositePositions,
		MinConfidence:            model.Confidence(cfg.MinConfidence),
	}, cfg.InitialBalanceCents, time.Now())

	loop := trader.New(trader.Config{
		Mode:              cfg.Mode,
		TickInterval:      cfg.TickInterval,
		StaleGapThreshold: cfg.StaleGapThreshold,
		MinDataPoints:     cfg.MinDataPoints,
		ScorerEnabled:     cfg.ScorerEnabled,
	}, trader.Deps{
		Clock:      interval.NewClock(cfg.IntervalMinutes, cfg.EntryOpenMinute, cfg.EntryCloseMinute),
		Engine:     indicator.NewEngine(indicator.Config{RSIPeriod: cfg.RSIPeriod, MomentumLookback: cfg.MomentumLookback, MomentumDeadBandPct: cfg.MomentumDeadBandPct}),
		Evaluator:  sig.NewEvaluator(sig.Config{VWAPThresholdPct: cfg.VWAPThresholdPct, RSIBullishLow: cfg.RSIBullishLow, RSIBullishHigh: cfg.RSIBullishHigh, RSIBearishLow: cfg.RSIBearishLow, RSIBearishHigh: cfg.RSIBearishHigh, MinAlignedFactors: cfg.MinAlignedFactors}),
		Risk:       riskMgr,
		Ledger:     book,
		History:    history.New(time.Hour, 7200),
		Feed:       priceFeed,
		Discovery:  marketClient,
		Oracle:     marketClient,
		Gateway:    gateway,
		Scorer:     dirScorer,
		SignalLogs: signalLogs,
		TradeLogs:  tradeLogs,
		Notifier:   notifier,
		Metrics:    prom,
		Health:     health,
		Store:      store,
	})

	startupCtx, startupCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := notifier.Send(startupCtx, notification.StartupAlert(cfg.Mode, cfg.InitialBalanceCents)); err != nil {
		log.Printf("[trader] startup notification failed: %v", err)
	}
	startupCancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case s := <-sigCh:
		log.Printf("[trader] received %s, shutting down...", s)
		cancel()
		<-done
	case err := <-done:
		if err != nil && err != context.Canceled {
			log.Printf("[trader] loop exited: %v", err)
		}
	}

	state := riskMgr.State()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	notifier.Send(shutdownCtx, notification.ShutdownAlert(state.CurrentBalance, len(book.OpenPositions())))
	metricsSrv.Stop(shutdownCtx)
	shutdownCancel()
	log.Printf("[trader] stopped: balance=%s pnl=%s", model.FormatUSD(state.CurrentBalance), model.FormatUSD(state.DailyPnL()))
}
