// Worker consumes audit events from Kafka and pushes them to Loki in batches.
// Set KAFKA_BROKERS, AUDIT_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
// Offsets are committed only after a batch is pushed or has exhausted its retries.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jfkeci/job-board-sub000/internal/config"
	"github.com/jfkeci/job-board-sub000/internal/telemetry/loki"
)

const (
	batchSize     = 100
	flushInterval = time.Second
	pushAttempts  = 3
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "jobboard-audit-worker")

	cfg, err := config.LoadTooling()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	brokers := cfg.AuditKafkaBrokersList()
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		logger.Error("LOKI_URL is required", "error", err)
		os.Exit(1)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.AuditKafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  flushInterval,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("consuming audit events", "topic", cfg.AuditKafkaTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
	run(ctx, logger, reader, client)
	logger.Info("stopped")
}

func run(ctx context.Context, logger *slog.Logger, reader *kafka.Reader, client *loki.Client) {
	batch := make([]kafka.Message, 0, batchSize)
	var first time.Time
	for {
		wait := flushInterval
		if len(batch) > 0 {
			wait = max(flushInterval-time.Since(first), time.Millisecond)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, wait)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()
		switch {
		case err == nil:
			if len(batch) == 0 {
				first = time.Now()
			}
			batch = append(batch, msg)
		case ctx.Err() != nil:
			// Shutting down: flush what we have on a fresh context.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			flush(flushCtx, logger, reader, client, batch)
			cancel()
			return
		case errors.Is(err, context.DeadlineExceeded):
		default:
			logger.Warn("kafka fetch failed", "error", err)
		}
		if !due(len(batch), first, time.Now()) {
			continue
		}
		flush(ctx, logger, reader, client, batch)
		batch = batch[:0]
	}
}

// due reports whether a batch of n messages, the oldest fetched at first, must be pushed now.
func due(n int, first, now time.Time) bool {
	return n >= batchSize || (n > 0 && now.Sub(first) >= flushInterval)
}

func flush(ctx context.Context, logger *slog.Logger, reader *kafka.Reader, client *loki.Client, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	entries := make([]loki.Entry, len(batch))
	for i, m := range batch {
		entries[i] = loki.EntryFromAuditJSON(m.Value)
	}

	var err error
	for attempt := 1; attempt <= pushAttempts; attempt++ {
		if err = client.Push(ctx, entries...); err == nil {
			break
		}
		logger.Warn("loki push failed", "error", err, "attempt", attempt, "batch", len(batch))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if err != nil {
		logger.Error("dropping audit batch after retries", "error", err, "batch", len(batch),
			"first_offset", batch[0].Offset, "last_offset", batch[len(batch)-1].Offset)
	}
	if err := reader.CommitMessages(ctx, batch...); err != nil {
		logger.Warn("kafka commit failed", "error", err)
	}
}
