package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prognohq/alphabot/config"
	"github.com/prognohq/alphabot/internal/adapters/feed"
	"github.com/prognohq/alphabot/internal/adapters/kalshi"
	"github.com/prognohq/alphabot/internal/adapters/notify"
	"github.com/prognohq/alphabot/internal/adapters/storage"
	"github.com/prognohq/alphabot/internal/application/engine"
	"github.com/prognohq/alphabot/internal/application/exec"
	sig "github.com/prognohq/alphabot/internal/domain/signal"
	"github.com/prognohq/alphabot/internal/metrics"
	"github.com/prognohq/alphabot/internal/ports"
	"github.com/prognohq/alphabot/internal/risk"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full decision table (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("alphabot starting",
		"config", *configPath,
		"interval", cfg.CycleInterval(),
		"environment", cfg.Risk.Environment,
		"markets", len(cfg.Trader.Markets),
		"once", *once,
	)
	if cfg.IsLive() {
		slog.Warn("LIVE trading enabled: orders will use real money")
	}

	client := kalshi.NewClient(cfg.Venue.APIBase,
		cfg.Venue.RateLimitPerSec, cfg.Venue.RateLimitBurst,
		time.Duration(cfg.Trader.RequestTimeoutSecs)*time.Second)
	books := kalshi.NewBookReader(client, time.Duration(cfg.Venue.BookCacheSeconds)*time.Second)
	quotes := kalshi.NewQuoteReader(books)
	trader := kalshi.NewTrader(client)
	settlements := kalshi.NewSettlementReader(client)

	var priceSource ports.PriceSource = noFeed{}
	if cfg.Venue.FeedURL != "" {
		stream, err := feed.NewStream(cfg.Venue.FeedURL, 10*time.Second)
		if err != nil {
			slog.Error("failed to start price feed", "err", err)
			os.Exit(1)
		}
		defer stream.Close()
		if err := stream.Subscribe(cfg.Trader.Markets...); err != nil {
			slog.Warn("price feed subscription failed", "err", err)
		}
		priceSource = stream
	}

	ledger, err := storage.NewLedger(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open ledger", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer ledger.Close()

	gate := risk.New(risk.Config{
		SpendCap:       cfg.SpendCap(),
		SpendWindow:    cfg.SpendWindow(),
		MaxOpenTrades:  cfg.Risk.MaxOpenTrades,
		AllowedOrigins: cfg.Risk.AllowedOrigins,
	})

	manager := exec.NewManager(books, priceSource, trader, exec.Config{
		MakerTickOffset:     cfg.Trader.MakerTickOffset,
		MinSpreadCents:      cfg.Trader.MinSpreadCents,
		BatchThreshold:      cfg.Trader.BatchThreshold,
		PriceToleranceCents: cfg.Trader.PriceToleranceCents,
		RequestTimeout:      time.Duration(cfg.Trader.RequestTimeoutSecs) * time.Second,
	})

	detectors := []sig.Detector{
		sig.NewLineMoveDetector(sig.LineMoveConfig{
			PublicMoneyThreshold: cfg.Signal.PublicMoneyThreshold,
			FreezeMaxLineMove:    cfg.Signal.FreezeMaxLineMove,
			StableConfidence:     cfg.Signal.StableConfidence,
			FreezeConfidence:     cfg.Signal.FreezeConfidence,
			ReverseConfidence:    cfg.Signal.ReverseConfidence,
		}),
		sig.NewChaosScorer(cfg.Signal.ChaosPenaltyWeight),
	}

	m := metrics.New()
	eng := engine.New(engine.Config{
		SpreadProbPerPoint:   cfg.Trader.SpreadProbPerPoint,
		StakePerTrade:        cfg.StakePerTrade(),
		MinConfidence:        cfg.Signal.MinConfidence,
		MinEdge:              cfg.Signal.MinEdge,
		HighConfidenceNotify: cfg.Signal.HighConfidenceNotify,
		ExecutionTarget:      cfg.Venue.APIBase,
	}, gate, manager, ledger, detectors, m).
		WithReporter(notify.NewConsole(*table))

	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			slog.Error("failed to start telegram notifier", "err", err)
			os.Exit(1)
		}
		eng.WithNotifier(tg)
	}

	poller := engine.NewPoller(settlements, ledger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Addr != "off" {
		serveMetrics(ctx, cfg.Metrics.Addr, m)
	}

	runCycle := func() {
		eng.RunCycle(ctx, quotes.Snapshot(ctx, cfg.Trader.Markets))
		if err := poller.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("settlement poll failed", "err", err)
		}
	}

	runCycle()
	if *once {
		slog.Info("alphabot stopped cleanly")
		return
	}

	ticker := time.NewTicker(cfg.CycleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alphabot stopped cleanly")
			return
		case <-ticker.C:
			runCycle()
		}
	}
}

// serveMetrics exposes /metrics until the context is cancelled.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "err", err, "addr", addr)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	slog.Info("metrics endpoint up", "addr", addr)
}

// noFeed is the price source used when no streaming feed is configured:
// never fresh, so dual-source verification degrades to book-only.
type noFeed struct{}

func (noFeed) LastPrice(string) (int, bool) { return 0, false }

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
