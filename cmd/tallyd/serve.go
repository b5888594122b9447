package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/tally/internal/archive"
	"github.com/alfredjeanlab/tally/internal/audit"
	"github.com/alfredjeanlab/tally/internal/config"
	"github.com/alfredjeanlab/tally/internal/events"
	"github.com/alfredjeanlab/tally/internal/ledger"
	"github.com/alfredjeanlab/tally/internal/partition"
	"github.com/alfredjeanlab/tally/internal/pii"
	"github.com/alfredjeanlab/tally/internal/rollup"
	"github.com/alfredjeanlab/tally/internal/server"
	"github.com/alfredjeanlab/tally/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Tally server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (TALLY_NATS_URL not set)")
		}

		// Wire the ledger with its write path hooks. Order matters: rollups
		// merge first, then the audit entry records the appended fact.
		led := ledger.New(store, cfg.PartitionWidth, cfg.PartitionMode, logger)
		led.Register(rollup.NewMerger(rollup.Families()))
		led.Register(audit.NewRecorder())

		// Archive destination, when configured.
		var dest archive.Destination
		if cfg.ArchiveS3Bucket != "" {
			s3Dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "err", err)
			} else {
				dest = s3Dest
				logger.Info("archive destination enabled", "bucket", cfg.ArchiveS3Bucket, "prefix", cfg.ArchiveS3Prefix)
			}
		}

		manager := partition.NewManager(store, partition.Config{
			Width:         cfg.PartitionWidth,
			Ahead:         cfg.PartitionAhead,
			Retention:     cfg.Retention,
			ArchivePrefix: cfg.ArchiveS3Prefix,
		}, dest, logger)

		lookup := pii.NewIndex(store, cfg.LookupIndexVisible, logger)

		tallyServer := server.NewTallyServer(store, led, lookup, manager, publisher, logger)

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: tallyServer.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start partition maintenance.
		var scheduler *partition.Scheduler
		if cfg.PartitionInterval > 0 {
			scheduler = partition.NewScheduler(manager, publisher, cfg.PartitionInterval, logger)
			scheduler.Start()
			logger.Info("partition scheduler started", "interval", cfg.PartitionInterval)
		}

		logger.Info("tally server started",
			"http_addr", cfg.HTTPAddr,
			"partition_width", cfg.PartitionWidth,
			"partition_mode", cfg.PartitionMode,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("partition scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
