package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgerindex/internal/api"
	"ledgerindex/internal/archive"
	"ledgerindex/internal/config"
	"ledgerindex/internal/ledger"
	"ledgerindex/internal/ledger/retry"
	"ledgerindex/internal/stats"
	"ledgerindex/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("Starting ledgerindex...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Configure logger
	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat))

	slog.Info("Configuration loaded",
		"ledger_rpc", cfg.LedgerRPCURL,
		"store_driver", cfg.StoreDriver,
		"snapshot_base", cfg.SnapshotBasePath,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Open the store
	repository, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer repository.Close()
	slog.Info("Store ready", "driver", cfg.StoreDriver)

	// 4. Create the sync engine; it dials the ledger itself so it can retry
	dial := func(ctx context.Context) (ledger.Client, error) {
		return ledger.Dial(ctx, ledger.Options{
			Endpoint:    cfg.LedgerRPCURL,
			MintAccount: cfg.MintAccount,
			Timeout:     cfg.RPCTimeout,
		})
	}
	engine := ledger.NewEngine(
		ledger.Config{
			MaxBatch:          cfg.MaxBatch,
			DivergeTolerance:  cfg.DivergeTolerance,
			OriginVersion:     cfg.OriginVersion,
			ConnectInterval:   cfg.ConnectInterval,
			ConnectMaxRetries: cfg.ConnectMaxRetries,
			HeadRetryDelay:    cfg.HeadRetryDelay,
			LagDelay:          cfg.LagDelay,
			EmptyBatchDelay:   cfg.EmptyBatchDelay,
			RestartDelay:      cfg.RestartDelay,
			RatePerRecord:     cfg.RatePerRecord,
		},
		dial,
		repository,
		archive.NewArchiver(repository, cfg.SnapshotBasePath),
		retry.NewCommitStrategy(cfg.CommitRetry),
	)

	// 5. Start API server
	aggregator := stats.NewAggregator(repository, cfg.StatsStartSlack, cfg.StatsEndSlack)
	server := api.NewServer(cfg.APIPort, repository, aggregator, engine)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	// 6. Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start syncing in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- engine.Run(ctx)
	}()

	// Wait for interrupt or error
	exitCode := 0
	select {
	case <-sigChan:
		slog.Warn("Interrupt received, shutting down...")
		cancel()
		// An in-flight commit finishes before Run returns
		if err := <-errChan; err != nil {
			slog.Error("Sync engine stopped with error", "error", err)
		}
	case err := <-errChan:
		if err != nil {
			slog.Error("Sync engine error", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping API server", "error", err)
	}

	slog.Info("Indexer stopped")
	if exitCode != 0 {
		repository.Close()
		os.Exit(exitCode)
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return storage.NewMemoryRepository(), nil
	case config.DriverPostgres:
		return storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
	default:
		return nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
}

func newLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
