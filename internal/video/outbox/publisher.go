package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/metrics"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

type Store interface {
	GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher relays outbox records to Kafka with at-least-once delivery:
// a record published but not marked is published again on the next poll.
type Publisher struct {
	store     Store
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

type PublisherConfig struct {
	Store     Store
	Producer  Producer
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if cfg.Producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		store:     cfg.Store,
		producer:  cfg.Producer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls the outbox every interval until ctx is cancelled. Errors on
// individual batches are logged and do not stop the loop.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

// PublishBatch relays up to one batch of pending records and returns how
// many were published.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.store.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events to publish")
		return 0, nil
	}

	var published, failed, marked int
	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("video_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		// keyed by video so events of one video stay ordered within a partition
		if err := p.producer.Publish(ctx, record.AggregateID, record.Payload); err != nil {
			eventLogger.Error().Err(err).Msg("failed to publish event to kafka")
			metrics.OutboxEventsTotal.WithLabelValues("failed").Inc()
			failed++
			continue
		}
		published++
		metrics.OutboxEventsTotal.WithLabelValues("published").Inc()

		if err := p.store.MarkProcessed(ctx, record.ID); err != nil {
			eventLogger.Warn().Err(err).Msg("failed to mark event as processed, it will be published again")
			continue
		}
		marked++
	}

	p.logger.Info().
		Int("total", len(records)).
		Int("published", published).
		Int("failed", failed).
		Int("marked", marked).
		Msg("batch processing completed")

	return published, nil
}
