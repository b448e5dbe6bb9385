// Command relay forwards committed outbox events to Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/romariotrain/hls-vod/internal/app"
	"github.com/romariotrain/hls-vod/internal/config"
	"github.com/romariotrain/hls-vod/internal/storage/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if !cfg.RelayEnabled() {
		fmt.Fprintln(os.Stderr, "KAFKA_BROKERS is empty")
		os.Exit(2)
	}
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	code := app.Run("relay", logger, func(ctx context.Context) error {
		db, err := sqlstore.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := sqlstore.Migrate(ctx, db); err != nil {
			return err
		}

		relay, producer, err := app.NewRelay(cfg, sqlstore.NewOutboxRepo(db), logger)
		if err != nil {
			return err
		}
		defer producer.Close()

		if err := producer.HealthCheck(ctx); err != nil {
			logger.Warn().Err(err).Msg("kafka is not reachable yet, relay will keep retrying")
		}

		err = relay.Start(ctx)
		if errors.Is(err, context.Canceled) {
			m := producer.GetMetrics()
			logger.Info().
				Int64("messages_published", m.MessagesPublished).
				Int64("messages_failed", m.MessagesFailed).
				Msg("relay stopped")
			return nil
		}
		return err
	})
	os.Exit(code)
}
