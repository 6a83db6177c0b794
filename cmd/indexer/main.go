package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swapstream/swap-indexer/internal/api"
	"github.com/swapstream/swap-indexer/internal/chainrpc"
	"github.com/swapstream/swap-indexer/internal/config"
	"github.com/swapstream/swap-indexer/internal/indexerclient"
	"github.com/swapstream/swap-indexer/internal/ingest"
	"github.com/swapstream/swap-indexer/internal/normalizer"
	"github.com/swapstream/swap-indexer/internal/processor"
	"github.com/swapstream/swap-indexer/internal/state"
	"github.com/swapstream/swap-indexer/internal/store/postgres"
	redisstore "github.com/swapstream/swap-indexer/internal/store/redis"
	"github.com/swapstream/swap-indexer/internal/tracing"
	"github.com/swapstream/swap-indexer/internal/txref"
)

func main() {
	if err := run(); err != nil {
		slog.Error("indexer exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting swap indexer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otlpEndpoint := ""
	if cfg.Tracing.Enabled {
		otlpEndpoint = cfg.Tracing.OTLPEndpoint
	}
	shutdownTracing, err := tracing.Init(ctx, "swap-indexer", otlpEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	tracker, err := redisstore.NewTracker(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer tracker.Close()

	channels := postgres.NewChannelRepo(db)
	requests := postgres.NewSwapRequestRepo(db)
	swaps := postgres.NewSwapRepo(db)
	egresses := postgres.NewEgressRepo(db)
	broadcasts := postgres.NewBroadcastRepo(db)
	failed := postgres.NewFailedSwapRepo(db)
	ignored := postgres.NewIgnoredEgressRepo(db)
	chainErrs := postgres.NewStateChainErrorRepo(db)
	pending := postgres.NewPendingTxRefRepo(db)
	tracking := postgres.NewChainTrackingRepo(db)
	fees := postgres.NewFeeRepo(db)
	cursors := postgres.NewCursorRepo(db)

	indexer := indexerclient.New(cfg.Indexer.URL, logger)
	calls := indexerclient.NewCachedCalls(indexer, 1024, 10*time.Minute)
	solana := chainrpc.NewSolanaClient(cfg.Solana.RPCURL, cfg.Solana.RPS, logger)

	proc := processor.New(db, processor.Stores{
		Channels:   channels,
		Requests:   requests,
		Swaps:      swaps,
		Egresses:   egresses,
		Broadcasts: broadcasts,
		Failed:     failed,
		Ignored:    ignored,
		ChainErrs:  chainErrs,
		Pending:    pending,
		Tracking:   tracking,
		Fees:       fees,
	}, calls, logger)

	loop := ingest.NewLoop(db, cursors, indexer, normalizer.New(logger), proc,
		cfg.Ingest.StartHeight, cfg.Ingest.Interval, logger)

	queue := txref.NewQueue(db, txref.Stores{
		Pending:  pending,
		Requests: requests,
		Failed:   failed,
		Channels: channels,
	}, solana, cfg.Reconcile.Interval, logger)

	resolver := state.NewResolver(state.Stores{
		Channels:   channels,
		Requests:   requests,
		Swaps:      swaps,
		Egresses:   egresses,
		Broadcasts: broadcasts,
		Failed:     failed,
		Ignored:    ignored,
		Fees:       fees,
	}, tracker, logger)

	server := api.NewServer(state.NewService(resolver), logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("indexer stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
