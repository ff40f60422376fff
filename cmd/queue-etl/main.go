// Package main runs the validator-queue ETL once to completion.
// Executes: fetch → verify → clean → publish
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"validator-queue-etl/internal/cleaning"
	"validator-queue-etl/internal/config"
	"validator-queue-etl/internal/dune"
	"validator-queue-etl/internal/freshness"
	"validator-queue-etl/internal/logging"
	"validator-queue-etl/internal/orchestrator"
	"validator-queue-etl/internal/publisher"
	"validator-queue-etl/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	// Flags override environment (and carry its values as defaults).
	feedURL := flag.String("feed-url", cfg.FeedURL, "Validator queue feed URL")
	tableName := flag.String("table", cfg.TableName, "Destination Dune table name")
	allowStale := flag.Bool("allow-stale", cfg.AllowStale, "Publish even when the snapshot is stale")
	dryRun := flag.Bool("dry-run", false, "Fetch, verify and clean, but skip the upload")
	timeout := flag.Duration("timeout", cfg.HTTPTimeout, "HTTP timeout for feed and sink calls")
	flag.Parse()

	cfg.FeedURL = *feedURL
	cfg.TableName = *tableName
	cfg.AllowStale = *allowStale
	cfg.HTTPTimeout = *timeout

	logger, err := logging.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// A dry run needs no credential; everything else fails fast without one.
	if !*dryRun {
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", zap.Error(err))
			return 1
		}
	}

	logger.Info("starting validator queue ETL",
		zap.String("feed_url", cfg.FeedURL),
		zap.String("table", cfg.TableName),
		zap.Bool("allow_stale", cfg.AllowStale),
		zap.Bool("dry_run", *dryRun))

	// Cancel the run on shutdown signals.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn("received signal, cancelling run", zap.Stringer("signal", sig))
		cancel()
	}()

	var sink publisher.Sink
	if !*dryRun {
		client, err := dune.NewClient(cfg.APIKey, logger, dune.WithTimeout(cfg.HTTPTimeout))
		if err != nil {
			logger.Error("creating sink client failed", zap.Error(err))
			return 1
		}
		sink = client
	}

	orch := orchestrator.New(orchestrator.Options{
		Fetcher: source.NewClient(cfg.FeedURL, logger, source.WithTimeout(cfg.HTTPTimeout)),
		Gate:    freshness.NewGate(logger, freshness.WithWindow(cfg.StaleWindow)),
		Cleaner: cleaning.NewCleaner(logger),
		Publisher: publisher.New(sink, logger,
			publisher.WithTableName(cfg.TableName),
			publisher.WithDescription(cfg.Description)),
		AllowStale: cfg.AllowStale,
		DryRun:     *dryRun,
		Logger:     logger,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		var stageErr *orchestrator.StageError
		if errors.As(err, &stageErr) {
			logger.Error("run failed",
				zap.String("stage", string(stageErr.Stage)),
				zap.Error(stageErr.Err))
		} else {
			logger.Error("run failed", zap.Error(err))
		}
		return 1
	}

	logger.Info("run completed",
		zap.Int("rows_fetched", result.RowsFetched),
		zap.Int("rows_kept", result.RowsKept),
		zap.String("table", result.TableName))
	return 0
}
