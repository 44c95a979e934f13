package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ethcrawler/internal/config"
	"ethcrawler/internal/infrastructure/kafka"
	"ethcrawler/internal/infrastructure/logging"
	"ethcrawler/internal/infrastructure/telemetry"
	"ethcrawler/internal/interfaces/httpapi"
)

const summaryInterval = time.Minute

func main() {
	cfg, err := config.LoadClientFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/auditor.log"
	}
	_, logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	}
	if logWriter != nil {
		defer logWriter.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "ethcrawler-auditor", cfg.OtelEndpoint)
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

	metrics := httpapi.NewMetrics()
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	}, metrics)
	if err != nil {
		slog.Error("kafka error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		ticker := time.NewTicker(summaryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logSummary(metrics.Snapshot())
			}
		}
	}()

	slog.Info("auditor started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	err = consumer.Run(ctx, func(ctx context.Context, record kafka.Record) error {
		msg := record.Message
		metrics.ObserveLookupEvent(msg, record.Offset, record.Time)
		slog.InfoContext(ctx, "lookup",
			"address", msg.Address,
			"from", msg.FromBlock,
			"to", msg.ToBlock,
			"outcome", msg.Outcome,
			"txs", msg.TxCount,
			"error_kind", msg.ErrorKind,
			"latency_ms", msg.LatencyMS,
			"trace_id", msg.TraceID,
		)
		return nil
	})
	if err != nil {
		slog.Error("auditor stopped", "err", err)
	}
	if err := consumer.Close(); err != nil {
		slog.Warn("kafka close error", "err", err)
	}
	logSummary(metrics.Snapshot())
}

func logSummary(snap httpapi.Snapshot) {
	attrs := []any{
		"events", snap.KafkaMessages,
		"ok", snap.LookupsOK,
		"failed", snap.LookupsFailed,
		"transactions", snap.TxCountTotal,
		"decode_errors", snap.KafkaDecodeErrs,
		"fetch_errors", snap.KafkaFetchErrs,
		"commit_errors", snap.KafkaCommitErrs,
		"last_offset", snap.KafkaLastOffset,
		"max_lag", snap.KafkaMaxLag,
	}
	for _, entry := range snap.UpstreamByKind {
		attrs = append(attrs, "failed_"+entry.Kind, entry.Count)
	}
	slog.Info("lookup summary", attrs...)
}
