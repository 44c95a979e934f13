package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ethcrawler/internal/application"
	"ethcrawler/internal/config"
	"ethcrawler/internal/infrastructure/explorer"
	"ethcrawler/internal/infrastructure/kafka"
	"ethcrawler/internal/infrastructure/logging"
	"ethcrawler/internal/infrastructure/ratelimit"
	"ethcrawler/internal/infrastructure/telemetry"
	"ethcrawler/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger, logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
		logger = slog.Default()
	}
	if logWriter != nil {
		defer logWriter.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "ethcrawler", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	limiter, closeLimiter, err := ratelimit.New(ratelimit.Config{
		Addr:  cfg.RedisAddr,
		Limit: cfg.ExplorerRateLimit,
	})
	if err != nil {
		slog.Error("rate limiter error", "err", err)
		os.Exit(1)
	}
	defer closeLimiter()

	explorerClient, err := explorer.NewClient(explorer.Config{
		BaseURL:    cfg.ExplorerURL,
		APIKey:     cfg.ExplorerAPIKey,
		Timeout:    cfg.ExplorerTimeout,
		HTTPClient: &http.Client{},
		Limiter:    limiter,
	})
	if err != nil {
		slog.Error("explorer client error", "err", err)
		os.Exit(1)
	}

	metrics := httpapi.NewMetrics()
	opts := application.AggregatorOptions{Observer: metrics, Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			slog.Error("kafka error", "err", err)
			os.Exit(1)
		}
		defer producer.Close()
		opts.Publisher = producer
	}

	aggregator, err := application.NewAggregator(explorerClient, opts)
	if err != nil {
		slog.Error("aggregator error", "err", err)
		os.Exit(1)
	}
	defer aggregator.Wait()

	httpServer, err := httpapi.NewServer(aggregator, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}, logger)
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("crawler starting",
		"addr", cfg.HTTPAddr,
		"explorer", cfg.ExplorerURL,
		"rate_limit", cfg.ExplorerRateLimit,
		"shared_limiter", cfg.RedisAddr != "",
		"lookup_events", len(cfg.KafkaBrokers) > 0,
	)
	slog.Debug("effective config", "config", cfg.Redacted())
	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server error", "err", err)
	}
	slog.Info("crawler stopped")
}
