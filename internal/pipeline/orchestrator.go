// Package pipeline sequences validation, encode policy, transcoding,
// publication and catalog mirroring for one video.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/catalog"
	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/media/publish"
	"github.com/romariotrain/hls-vod/internal/media/transcode"
	"github.com/romariotrain/hls-vod/internal/metrics"
)

type Validator interface {
	Validate(ctx context.Context, src media.Source) error
}

type Policy interface {
	Resolve(ctx context.Context, target media.Resolution, sourcePath string) (media.EncodeParams, error)
}

type Transcoder interface {
	StagingDir(src media.Source) string
	Transcode(ctx context.Context, sourcePath string, params media.EncodeParams, stagingDir string) (*transcode.Output, error)
}

type Publisher interface {
	Publish(ctx context.Context, stagingDir string, src media.Source) (*publish.Published, error)
	Unpublish(pub *publish.Published) error
}

// Cataloger mirrors a published video. Its errors never fail a run.
type Cataloger interface {
	Sync(ctx context.Context, rec catalog.Record) error
}

// FinalizeFunc persists the published reference. It runs after publication
// and before catalog mirroring; an error fails the run and unpublishes.
type FinalizeFunc func(ctx context.Context, pub *publish.Published) error

// Job asks for one video to be transcoded against its current source and
// target. It serves initial creation and reprocessing alike.
type Job struct {
	VideoID  string
	Title    string
	Source   media.Source
	Target   media.Resolution
	// PreviousURL is the stream the record references before this run. A
	// rendition published over it is kept even if finalizing fails.
	PreviousURL string
	Finalize    FinalizeFunc
}

type Result struct {
	State     State
	Params    media.EncodeParams
	Published *publish.Published
	// CatalogErr is set when mirroring failed; the run still reached Done.
	CatalogErr error
}

// Failure is returned when a run ends in Failed. It wraps the cause so
// errors.Is works against the media error taxonomy.
type Failure struct {
	State State
	Err   error
}

func (f *Failure) Error() string { return fmt.Sprintf("%s: %v", f.State, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }

type Config struct {
	Validator  Validator
	Policy     Policy
	Transcoder Transcoder
	Publisher  Publisher
	Catalog    Cataloger
	Logger     zerolog.Logger
}

type Orchestrator struct {
	validator  Validator
	policy     Policy
	transcoder Transcoder
	publisher  Publisher
	catalog    Cataloger
	logger     zerolog.Logger
}

func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Validator == nil:
		return nil, errors.New("validator is required")
	case cfg.Policy == nil:
		return nil, errors.New("resolution policy is required")
	case cfg.Transcoder == nil:
		return nil, errors.New("transcoder is required")
	case cfg.Publisher == nil:
		return nil, errors.New("publisher is required")
	case cfg.Catalog == nil:
		return nil, errors.New("catalog is required")
	}
	return &Orchestrator{
		validator:  cfg.Validator,
		policy:     cfg.Policy,
		transcoder: cfg.Transcoder,
		publisher:  cfg.Publisher,
		catalog:    cfg.Catalog,
		logger:     cfg.Logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// run tracks the state of one pipeline execution.
type run struct {
	state  State
	since  time.Time
	logger zerolog.Logger
}

func (r *run) advance(to State) {
	if err := ValidateTransition(r.state, to); err != nil {
		// a programming error, not a media failure
		panic(err)
	}
	if r.state != Created {
		metrics.StageDuration.WithLabelValues(string(r.state)).Observe(time.Since(r.since).Seconds())
	}
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(to)).Msg("state transition")
	r.state = to
	r.since = time.Now()
}

// Run executes the pipeline synchronously and returns once the run reached
// Done or Failed. On Failed the returned error is a *Failure and no staged or
// published output of this run is left behind.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	if !job.Target.Valid() {
		return &Result{State: Failed}, &Failure{State: Created, Err: fmt.Errorf("unknown target resolution %q", job.Target)}
	}

	r := &run{
		state: Created,
		since: time.Now(),
		logger: o.logger.With().
			Str("video_id", job.VideoID).
			Str("source", job.Source.Name).
			Str("target", string(job.Target)).
			Logger(),
	}
	metrics.PipelineRunsInProgress.Inc()
	defer metrics.PipelineRunsInProgress.Dec()

	res, err := o.execute(ctx, r, job)
	if err != nil {
		failedIn := r.state
		r.advance(Failed)
		metrics.PipelineRunsTotal.WithLabelValues(string(Failed)).Inc()
		metrics.PipelineFailuresTotal.WithLabelValues(string(failedIn), ErrorKind(err)).Inc()
		r.logger.Error().Err(err).Str("state", string(failedIn)).Msg("pipeline failed")
		res.State = Failed
		return res, &Failure{State: failedIn, Err: err}
	}

	r.advance(Done)
	metrics.PipelineRunsTotal.WithLabelValues(string(Done)).Inc()
	res.State = Done
	r.logger.Info().Str("url", res.Published.URL).Msg("pipeline done")
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, job Job) (*Result, error) {
	res := &Result{}

	r.advance(Validating)
	if err := o.validator.Validate(ctx, job.Source); err != nil {
		return res, err
	}

	r.advance(Probing)
	params, err := o.policy.Resolve(ctx, job.Target, job.Source.Path)
	if err != nil {
		return res, err
	}
	res.Params = params
	r.logger.Info().Str("size", params.Size()).Str("maxrate", params.MaxRateArg()).Msg("encode parameters resolved")

	r.advance(Encoding)
	out, err := o.transcoder.Transcode(ctx, job.Source.Path, params, o.transcoder.StagingDir(job.Source))
	if err != nil {
		return res, err
	}

	r.advance(Publishing)
	pub, err := o.publisher.Publish(ctx, out.Dir, job.Source)
	if err != nil {
		return res, err
	}
	if job.Finalize != nil {
		if err := job.Finalize(ctx, pub); err != nil {
			if pub.URL == job.PreviousURL {
				r.logger.Warn().Str("path", pub.RelativePath).Msg("finalize failed, keeping rendition still referenced by the record")
			} else if rmErr := o.publisher.Unpublish(pub); rmErr != nil {
				r.logger.Error().Err(rmErr).Str("path", pub.RelativePath).Msg("failed to unpublish after finalize failure")
			}
			return res, fmt.Errorf("finalize: %w", err)
		}
	}
	res.Published = pub

	r.advance(Syncing)
	rec := catalog.Record{
		VideoID:      job.VideoID,
		Title:        job.Title,
		URL:          pub.URL,
		RelativePath: pub.RelativePath,
	}
	if err := o.catalog.Sync(ctx, rec); err != nil {
		metrics.CatalogSyncTotal.WithLabelValues("failed").Inc()
		r.logger.Warn().Err(err).Msg("catalog sync failed, continuing")
		res.CatalogErr = err
	} else {
		metrics.CatalogSyncTotal.WithLabelValues("ok").Inc()
	}
	return res, nil
}

// ErrorKind names the media error class of err for metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, media.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, media.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, media.ErrDurationExceeded):
		return "duration_exceeded"
	case errors.Is(err, media.ErrEncodeTimeout):
		return "encode_timeout"
	case errors.Is(err, media.ErrEncodeFailed):
		return "encode_failed"
	case errors.Is(err, media.ErrPublishFailed):
		return "publish_failed"
	case errors.Is(err, media.ErrProbeFailed):
		return "probe_failed"
	default:
		return "internal"
	}
}
