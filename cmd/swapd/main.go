// Package main runs the swap bot daemon: the chat gateway HTTP server,
// the swap engine and the Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"solana-swapbot/internal/conversation"
	"solana-swapbot/internal/discovery"
	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/engine"
	"solana-swapbot/internal/gateway"
	"solana-swapbot/internal/observability"
	"solana-swapbot/internal/quote"
	"solana-swapbot/internal/solana"
	"solana-swapbot/internal/storage"
	chstore "solana-swapbot/internal/storage/clickhouse"
	filestore "solana-swapbot/internal/storage/file"
	"solana-swapbot/internal/storage/memory"
	"solana-swapbot/internal/storage/migrations"
	pgstore "solana-swapbot/internal/storage/postgres"
	"solana-swapbot/internal/usage"
)

type stores struct {
	usage   storage.UsageStore
	journal storage.SwapJournal
	cleanup func()
}

func main() {
	// Load .env file if present; real env vars win.
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", envOr("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, enables subscription-based confirmation)")
	quoteEndpoint := flag.String("quote-endpoint", envOr("QUOTE_ENDPOINT", "https://swap.solxtence.com"), "Swap quote provider base URL")
	walletKey := flag.String("wallet-key", os.Getenv("SOL_PRIVATE_KEY"), "Base58-encoded wallet private key")
	storeKind := flag.String("store", envOr("USAGE_STORE", "memory"), "Usage store backend: postgres, file or memory")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (store=postgres)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional outcome analytics mirror)")
	usageDir := flag.String("usage-dir", envOr("USAGE_DIR", "data"), "Directory for usage records (store=file)")
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "Gateway HTTP listen address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	confirmTimeout := flag.Duration("confirm-timeout", solana.DefaultConfirmTimeout, "Transaction confirmation wait")
	promptTTL := flag.Duration("prompt-ttl", conversation.DefaultTTL, "Amount prompt lifetime")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *walletKey == "" {
		logger.Fatal("--wallet-key (or SOL_PRIVATE_KEY) is required")
	}
	if *storeKind == "postgres" && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required with --store=postgres")
	}

	wallet, err := domain.NewWalletFromBase58(*walletKey)
	if err != nil {
		logger.Fatal("parse wallet key", zap.Error(err))
	}
	logger.Info("wallet loaded", zap.String("address", wallet.Address()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := createStores(ctx, *storeKind, *postgresDSN, *clickhouseDSN, *usageDir, logger)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer st.cleanup()

	metrics := observability.NewMetrics("")

	rpc := solana.NewHTTPClient(*rpcEndpoint, solana.WithClientMetrics(metrics))

	submitterOpts := []solana.SubmitterOption{
		solana.WithConfirmTimeout(*confirmTimeout),
		solana.WithLogger(logger.Named("submitter")),
		solana.WithSubmitterMetrics(metrics),
	}
	if *wsEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Fatal("connect websocket", zap.Error(err))
		}
		defer ws.Close()
		submitterOpts = append(submitterOpts, solana.WithWSClient(ws))
	}
	submitter := solana.NewSubmitter(rpc, submitterOpts...)

	quotes := quote.NewClient(*quoteEndpoint)
	meter := usage.NewMeter(st.usage, wallet.Address())

	eng := engine.New(wallet, meter, rpc, quotes, submitter,
		engine.WithJournal(st.journal),
		engine.WithMetrics(metrics),
		engine.WithLogger(logger.Named("engine")))

	router := gateway.NewRouter(eng, rpc, wallet.Address(),
		discovery.NewBook(),
		conversation.NewTracker(conversation.WithTTL(*promptTTL)),
		gateway.WithMetrics(metrics),
		gateway.WithLogger(logger.Named("gateway")))

	gatewaySrv := &http.Server{
		Addr:    *listenAddr,
		Handler: gateway.NewServer(router, logger.Named("gateway")).Handler(),
	}
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: observability.Handler()}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", zap.String("addr", *listenAddr))
		if err := gatewaySrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listening", zap.String("addr", *metricsAddr))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go trackUptime(ctx, metrics)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := gatewaySrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// createStores wires the usage store and swap journal for the selected
// backend. With a ClickHouse DSN configured, terminal outcomes are
// mirrored to the analytics store as well.
func createStores(ctx context.Context, kind, postgresDSN, clickhouseDSN, usageDir string, logger *zap.Logger) (*stores, error) {
	st := &stores{cleanup: func() {}}

	switch kind {
	case "memory":
		st.usage = memory.NewUsageStore()
		st.journal = memory.NewSwapJournal()
	case "file":
		us, err := filestore.NewUsageStore(usageDir)
		if err != nil {
			return nil, fmt.Errorf("open file usage store: %w", err)
		}
		st.usage = us
		st.journal = memory.NewSwapJournal()
	case "postgres":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		st.usage = pgstore.NewUsageStore(pool)
		st.journal = pgstore.NewSwapJournal(pool)
		st.cleanup = pool.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			st.cleanup()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			st.cleanup()
			return nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		prevCleanup := st.cleanup
		st.cleanup = func() {
			conn.Close()
			prevCleanup()
		}
		st.journal = newFanoutJournal(st.journal, chstore.NewOutcomeStore(conn), logger)
	}

	return st, nil
}

func trackUptime(ctx context.Context, metrics *observability.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UptimeSeconds.Inc()
		}
	}
}
