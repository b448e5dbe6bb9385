// Command reprocess re-runs the transcoding pipeline for existing videos,
// optionally switching their target resolution first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/app"
	"github.com/romariotrain/hls-vod/internal/config"
	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/pipeline"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

// idList collects ids from repeated or comma-separated -id flags.
type idList []uuid.UUID

func (l *idList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, 0, len(*l))
	for _, id := range *l {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(value string) error {
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid video id %q", raw)
		}
		*l = append(*l, id)
	}
	return nil
}

type reprocessor interface {
	Reprocess(ctx context.Context, id uuid.UUID, target *media.Resolution) (*models.Video, error)
}

func main() {
	var (
		ids    idList
		target string
	)
	flag.Var(&ids, "id", "video id to reprocess (repeatable, comma-separated)")
	flag.StringVar(&target, "target", "", "new target resolution (original, 360p, 480p, 720p, 1080p)")
	flag.Parse()

	if len(ids) == 0 {
		fatalf("-id is required")
	}
	res, err := parseTarget(target)
	if err != nil {
		fatalf("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	code := app.Run("reprocess", logger, func(ctx context.Context) error {
		stack, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()
		return reprocessAll(ctx, stack.Service, ids, res, logger)
	})
	os.Exit(code)
}

func parseTarget(raw string) (*media.Resolution, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	r, err := media.ParseResolution(raw)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// reprocessAll runs every id in order and keeps going after failures. It
// returns an error when at least one video failed.
func reprocessAll(ctx context.Context, svc reprocessor, ids []uuid.UUID, target *media.Resolution, logger zerolog.Logger) error {
	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := logger.With().Str("video_id", id.String()).Logger()

		v, err := svc.Reprocess(ctx, id, target)
		if err != nil {
			failed++
			event := logger.Error().Err(err)
			var f *pipeline.Failure
			if errors.As(err, &f) {
				event = event.Str("state", string(f.State)).Str("kind", pipeline.ErrorKind(err))
			}
			event.Msg("reprocess failed")
			continue
		}
		stream := ""
		if v.ProcessedStream != nil {
			stream = *v.ProcessedStream
		}
		logger.Info().
			Str("target_resolution", string(v.TargetResolution)).
			Str("processed_stream", stream).
			Msg("reprocessed")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed", failed, len(ids))
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
