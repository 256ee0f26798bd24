package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edelagziel/SkyWatch/internal/api"
	"github.com/edelagziel/SkyWatch/internal/config"
	"github.com/edelagziel/SkyWatch/internal/engine"
	"github.com/edelagziel/SkyWatch/internal/metrics"
	skynats "github.com/edelagziel/SkyWatch/internal/nats"
	"github.com/edelagziel/SkyWatch/internal/policy"
	"github.com/edelagziel/SkyWatch/internal/rules"
	"github.com/edelagziel/SkyWatch/internal/schema"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting SkyWatch Policy Engine",
		"http_addr", cfg.HTTPAddr,
		"nats_url", cfg.NATSURL,
		"policy_path", cfg.PolicyPath,
		"snapshot_subject", cfg.SnapshotSubject,
		"result_subject", cfg.ResultSubject,
		"queue_group", cfg.QueueGroup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validator, err := schema.NewSnapshotValidator()
	if err != nil {
		logger.Error("Failed to build snapshot validator", "error", err)
		os.Exit(1)
	}

	registry := rules.NewDefaultRegistry()
	repository := policy.NewFileRepository(cfg.PolicyPath, logger)
	prometheusMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	eng := engine.NewEngine(repository, registry, prometheusMetrics, logger)

	// NATS mode is optional; the HTTP API always runs.
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		logger.Info("Connected to NATS")

		publisher := skynats.NewPublisher(nc, cfg.ResultSubject, cfg.FindingSubject, logger)
		subscriber := skynats.NewSubscriber(nc, eng, publisher, validator, cfg.SnapshotSubject, cfg.QueueGroup, prometheusMetrics, logger)

		go func() {
			if err := subscriber.Subscribe(ctx); err != nil {
				logger.Error("NATS subscriber error", "error", err)
			}
		}()
	}

	httpAPI := api.NewHTTPAPI(registry, repository, validator, prometheusMetrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpAPI.Router(),
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Policy engine started successfully")
	<-sigChan

	logger.Info("Shutting down policy engine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Policy engine stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
