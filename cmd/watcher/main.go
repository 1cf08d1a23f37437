package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brojonat/solwatch/service/classify"
	"github.com/brojonat/solwatch/service/config"
	"github.com/brojonat/solwatch/service/cursor"
	"github.com/brojonat/solwatch/service/events"
	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/notify"
	"github.com/brojonat/solwatch/service/poller"
	"github.com/brojonat/solwatch/service/price"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting watcher",
		"primary_wallet", cfg.PrimaryWallet,
		"secondary_wallet", cfg.SecondaryWallet,
		"watched_mint", cfg.WatchedMint,
		"poll_interval", cfg.PollInterval.String(),
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(nil)

	// Cursor store: Postgres when configured, JSON file otherwise.
	var cursors cursor.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		pgStore := cursor.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure cursor schema", "error", err)
			os.Exit(1)
		}
		cursors = pgStore
		logger.Info("using postgres cursor store")
	} else {
		fileStore, err := cursor.NewFileStore(cfg.CursorFilePath, logger)
		if err != nil {
			logger.Error("failed to create cursor store", "error", err)
			os.Exit(1)
		}
		cursors = fileStore
		logger.Info("using file cursor store", "path", cfg.CursorFilePath)
	}

	// Ledger reader with optional alternate endpoint for failover.
	primaryRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	var altRPC solana.RPCClient
	if cfg.SolanaAltRPCURL != "" {
		altRPC = solana.NewRPCClient(cfg.SolanaAltRPCURL)
	}
	reader := solana.NewClient(primaryRPC, cfg.SolanaRPCURL, altRPC, cfg.SolanaAltRPCURL, m, logger)
	logger.Info("initialized solana RPC client",
		"url", cfg.SolanaRPCURL,
		"alt_url", cfg.SolanaAltRPCURL,
	)

	// Pricing: Jupiter lookup with manual override fallback, reloaded
	// each cycle.
	manualPrices := price.NewManualStore(cfg.ManualPriceFilePath, logger)
	prices := price.NewClient(manualPrices, logger)

	notifier := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatIDs, logger)

	var filter *notify.Filter
	if cfg.NotifyFilter != "" {
		f, err := notify.NewFilter(cfg.NotifyFilter)
		if err != nil {
			logger.Error("invalid NOTIFY_FILTER", "error", err)
			os.Exit(1)
		}
		filter = f
	}

	// Optional NATS event stream.
	var publisher events.Publisher
	if cfg.NATSURL != "" {
		p, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	}

	dispatcher := poller.NewEventDispatcher(
		poller.DispatcherOptions{
			WatchedMint:        cfg.WatchedMint,
			WatchedTokenSymbol: cfg.WatchedTokenSymbol,
			FeeMediaRef:        cfg.NotifyFeeMediaURL,
			BurnMediaRef:       cfg.NotifyBurnMediaURL,
		},
		prices, notifier, filter, publisher, m, logger,
	)

	cctx := classify.Context{
		PrimaryWallet:   cfg.PrimaryWallet,
		SecondaryWallet: cfg.SecondaryWallet,
		WatchedMint:     cfg.WatchedMint,
		Incinerator:     cfg.IncineratorAddress,
	}

	// One poller per wallet; the two run independently.
	opts := poller.Options{
		Interval:       cfg.PollInterval,
		SignatureLimit: cfg.SignatureLimit,
		CursorPolicy:   cfg.CursorPolicy,
	}
	pollers := []*poller.Poller{}
	for _, wallet := range []string{cfg.PrimaryWallet, cfg.SecondaryWallet} {
		walletOpts := opts
		walletOpts.Wallet = wallet
		pollers = append(pollers, poller.New(walletOpts, reader, cursors, cctx, dispatcher, m, logger))
	}

	// Metrics and health endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "solwatch",
		})
	})
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()
	logger.Info("metrics server listening", "addr", cfg.MetricsAddr)

	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("metrics server error", "error", err)
		cancel()
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}

	// Let in-flight classification and dispatch finish so cursors and
	// dispatched events stay consistent.
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown metrics server gracefully", "error", err)
	}

	logger.Info("watcher shutdown complete")
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
