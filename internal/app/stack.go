package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/catalog"
	"github.com/romariotrain/hls-vod/internal/config"
	"github.com/romariotrain/hls-vod/internal/media/policy"
	"github.com/romariotrain/hls-vod/internal/media/probe"
	"github.com/romariotrain/hls-vod/internal/media/publish"
	"github.com/romariotrain/hls-vod/internal/media/transcode"
	"github.com/romariotrain/hls-vod/internal/media/validate"
	"github.com/romariotrain/hls-vod/internal/pipeline"
	"github.com/romariotrain/hls-vod/internal/storage/sqlstore"
	"github.com/romariotrain/hls-vod/internal/video/kafka"
	"github.com/romariotrain/hls-vod/internal/video/outbox"
	"github.com/romariotrain/hls-vod/internal/video/service"
)

// Stack is the wired processing core shared by the binaries.
type Stack struct {
	DB      *sqlx.DB
	Videos  *sqlstore.VideoRepo
	Outbox  *sqlstore.OutboxRepo
	Service *service.Service

	closers []func() error
}

// Build connects the primary store, creates the schema and assembles the
// pipeline and video service from cfg.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Stack, error) {
	db, err := sqlstore.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	s := &Stack{DB: db, closers: []func() error{db.Close}}

	if err := sqlstore.Migrate(ctx, db); err != nil {
		_ = s.Close()
		return nil, err
	}

	sink, err := newCatalogSink(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if sqlSink, ok := sink.(*catalog.SQLSink); ok {
		s.closers = append(s.closers, sqlSink.Close)
	}

	prober := probe.New(probe.Config{
		Binary:     cfg.FFprobeBin,
		SearchPath: cfg.ToolSearchPath,
		Timeout:    cfg.ProbeTimeout,
		Logger:     logger,
	})
	orchestrator, err := pipeline.New(pipeline.Config{
		Validator: validate.New(validate.Config{
			MaxBytes:           cfg.MaxUploadBytes,
			MaxDurationSeconds: cfg.MaxDurationSeconds,
			Prober:             prober,
			Logger:             logger,
		}),
		Policy: policy.New(policy.Config{
			Original: policy.Preset{Width: cfg.DefaultWidth, Height: cfg.DefaultHeight},
			Prober:   prober,
			Logger:   logger,
		}),
		Transcoder: transcode.New(transcode.Config{
			Binary:      cfg.FFmpegBin,
			SearchPath:  cfg.ToolSearchPath,
			StagingRoot: cfg.StagingRoot,
			Timeout:     cfg.EncodeTimeout,
			Logger:      logger,
		}),
		Publisher: publish.New(publish.Config{
			PublicRoot: cfg.PublicRoot,
			BaseURL:    cfg.PublicBaseURL,
			Logger:     logger,
		}),
		Catalog: catalog.NewMirror(catalog.MirrorConfig{
			Sink:       sink,
			Status:     cfg.CatalogStatus,
			CategoryID: cfg.CatalogCategoryID,
			BaseURL:    cfg.CatalogBaseURL,
			Logger:     logger,
		}),
		Logger: logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Videos = sqlstore.NewVideoRepo(db)
	s.Outbox = sqlstore.NewOutboxRepo(db)
	s.Service = service.New(s.Videos, s.Outbox, orchestrator, logger)
	return s, nil
}

func newCatalogSink(cfg config.Config, logger zerolog.Logger) (catalog.Sink, error) {
	if cfg.CatalogDSN == "" {
		logger.Warn().Msg("CATALOG_DSN is empty, catalog entries are only logged")
		return catalog.NewLogSink(logger), nil
	}
	sink, err := catalog.OpenSQLSink(cfg.CatalogDriver, cfg.CatalogDSN, cfg.CatalogTable)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// Close releases everything Build opened, last opened first.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// NewRelay builds the outbox relay and its Kafka producer. The returned
// producer must be closed by the caller once the relay has stopped.
func NewRelay(cfg config.Config, store outbox.Store, logger zerolog.Logger) (*outbox.Publisher, *kafka.Producer, error) {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.KafkaTopic,
		BatchSize: cfg.OutboxBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	relay, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     store,
		Producer:  producer,
		Interval:  cfg.OutboxInterval,
		BatchSize: cfg.OutboxBatchSize,
		Logger:    logger,
	})
	if err != nil {
		_ = producer.Close()
		return nil, nil, err
	}
	return relay, producer, nil
}
