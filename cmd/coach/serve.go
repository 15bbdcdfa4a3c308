package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/skypro1111/laugh-coach/internal/coach"
	"github.com/skypro1111/laugh-coach/internal/metrics"
	"github.com/skypro1111/laugh-coach/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serve joke critique, recording analysis, health, statistics and Prometheus metrics over HTTP.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(ctx context.Context) error {
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("config_path", configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("onsets_per_word", cfg.Analysis.OnsetsPerWord),
		slog.Float64("top_db", cfg.Analysis.TopDB),
		slog.Float64("loudness_scale", cfg.Analysis.LoudnessScale),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("feedback_endpoint", cfg.Feedback.Endpoint),
		slog.Bool("s3_enabled", cfg.S3.IsConfigured()),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	c, err := coach.Build(cfg, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create coach: %w", err)
	}

	httpServer := server.NewHTTPServer(server.Options{
		Config:   cfg,
		Coach:    c,
		Metrics:  appMetrics,
		Gatherer: registry,
		Version:  version,
		Logger:   logger,
	})

	if err := httpServer.Start(); err != nil {
		c.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Service started successfully, waiting for signals...")
	<-ctx.Done()

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Release the shared transcription and feedback clients
	if err := c.Close(); err != nil {
		logger.Error("Error closing remote clients", slog.String("error", err.Error()))
	}

	stats := c.GetStats()
	logger.Info("Final service statistics",
		slog.Uint64("analyzed", stats.Analyzer.Analyzed),
		slog.Uint64("analysis_failures", stats.Analyzer.Failed),
	)

	logger.Info("Service stopped")
	return nil
}
