package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/media/publish"
	"github.com/romariotrain/hls-vod/internal/pipeline"
	"github.com/romariotrain/hls-vod/internal/video/models"
	"github.com/romariotrain/hls-vod/internal/video/repository"
)

type Pipeline interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

type Service struct {
	repo     repository.VideoRepository
	outbox   repository.OutboxRepository
	pipeline Pipeline
	logger   zerolog.Logger
	clock    func() time.Time
	idGen    func() uuid.UUID
}

func New(repo repository.VideoRepository, outbox repository.OutboxRepository, p Pipeline, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		outbox:   outbox,
		pipeline: p,
		logger:   logger.With().Str("component", "video_service").Logger(),
		clock:    time.Now,
		idGen:    uuid.New,
	}
}

type CreateVideoInput struct {
	Caption string
	// Target defaults to 720p when empty.
	Target media.Resolution
	Source media.Source
}

// CreateVideo stores a new video and runs the pipeline for it inside one
// transaction. The record only becomes visible once its rendition is
// published; any pipeline failure leaves no record behind.
func (s *Service) CreateVideo(ctx context.Context, in CreateVideoInput) (*models.Video, error) {
	caption := strings.TrimSpace(in.Caption)
	if caption == "" || len([]rune(caption)) > models.MaxCaptionLength {
		return nil, fmt.Errorf("%w: caption must be 1-%d characters", models.ErrInvalidArgument, models.MaxCaptionLength)
	}
	target := in.Target
	if target == "" {
		target = media.DefaultResolution
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown target resolution %q", models.ErrInvalidArgument, target)
	}
	if in.Source.Name == "" || in.Source.Path == "" {
		return nil, fmt.Errorf("%w: source is required", models.ErrInvalidArgument)
	}

	now := s.clock()
	v := &models.Video{
		ID:               s.idGen(),
		Caption:          caption,
		SourceName:       in.Source.Name,
		SourcePath:       in.Source.Path,
		SourceSize:       in.Source.Size,
		TargetResolution: target,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.CreateTx(ctx, tx, v); err != nil {
		return nil, err
	}

	if err := s.process(ctx, tx, v, "", false); err != nil {
		return nil, err
	}
	return v, nil
}

// Reprocess clears the processed stream of an existing video, optionally
// switches its target resolution, and runs the pipeline again against the
// stored source. If the run fails the record keeps its previous stream.
// Concurrent calls for the same video must be serialized by the caller.
func (s *Service) Reprocess(ctx context.Context, id uuid.UUID, target *media.Resolution) (*models.Video, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if target != nil && !target.Valid() {
		return nil, fmt.Errorf("%w: unknown target resolution %q", models.ErrInvalidArgument, *target)
	}

	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := ""
	if v.ProcessedStream != nil {
		previous = *v.ProcessedStream
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	v.ProcessedStream = nil
	if target != nil {
		v.TargetResolution = *target
	}
	v.UpdatedAt = s.clock()
	if err := s.repo.UpdateTx(ctx, tx, v); err != nil {
		return nil, err
	}

	if err := s.process(ctx, tx, v, previous, true); err != nil {
		return nil, err
	}
	return v, nil
}

// process runs the pipeline and, once the rendition is public, sets the
// processed stream, records the outbox event and commits tx.
func (s *Service) process(ctx context.Context, tx repository.Tx, v *models.Video, previous string, reprocess bool) error {
	logger := s.logger.With().Str("video_id", v.ID.String()).Bool("reprocess", reprocess).Logger()

	job := pipeline.Job{
		VideoID:     v.ID.String(),
		Title:       v.Caption,
		Source:      v.Source(),
		Target:      v.TargetResolution,
		PreviousURL: previous,
		Finalize: func(ctx context.Context, pub *publish.Published) error {
			url := pub.URL
			v.ProcessedStream = &url
			v.UpdatedAt = s.clock()
			if err := s.repo.UpdateTx(ctx, tx, v); err != nil {
				return fmt.Errorf("set processed stream: %w", err)
			}
			event := models.NewVideoPublished(v, pub.RelativePath, reprocess, v.UpdatedAt)
			if err := s.outbox.AddTx(ctx, tx, event); err != nil {
				return fmt.Errorf("add outbox: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}
			return nil
		},
	}

	res, err := s.pipeline.Run(ctx, job)
	if err != nil {
		v.ProcessedStream = nil
		logger.Error().Err(err).Msg("video processing failed")
		return err
	}
	if res.CatalogErr != nil {
		logger.Warn().Err(res.CatalogErr).Msg("video published without catalog entry")
	}
	logger.Info().Str("url", *v.ProcessedStream).Msg("video processed")
	return nil
}

// GetVideo returns a video by id. Repository errors such as models.ErrNotFound
// are passed through for the transport layer to map.
func (s *Service) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListVideos(ctx context.Context, f models.ListFilter) ([]*models.Video, error) {
	if f.TargetResolution != "" && !f.TargetResolution.Valid() {
		return nil, fmt.Errorf("%w: unknown target resolution %q", models.ErrInvalidArgument, f.TargetResolution)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.List(ctx, f)
}

// IsPipelineFailure reports whether err came out of a pipeline run.
func IsPipelineFailure(err error) bool {
	var f *pipeline.Failure
	return errors.As(err, &f)
}
