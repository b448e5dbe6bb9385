package validate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/metrics"
)

const (
	DefaultMaxBytes           int64   = 2500 * 1024 * 1024
	DefaultMaxDurationSeconds float64 = 600
)

// DefaultExtensions is the accepted container allow-list.
var DefaultExtensions = []string{"mp4", "mkv", "avi", "mov", "webm"}

type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type Config struct {
	MaxBytes           int64
	MaxDurationSeconds float64
	Extensions         []string
	Prober             DurationProber
	Logger             zerolog.Logger
}

type Validator struct {
	maxBytes    int64
	maxDuration float64
	extensions  map[string]struct{}
	prober      DurationProber
	logger      zerolog.Logger
}

func New(cfg Config) *Validator {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	return &Validator{
		maxBytes:    cfg.MaxBytes,
		maxDuration: cfg.MaxDurationSeconds,
		extensions:  exts,
		prober:      cfg.Prober,
		logger:      cfg.Logger.With().Str("component", "validator").Logger(),
	}
}

// Validate rejects sources with an unsupported extension, a size above the
// ceiling or a probed duration above the ceiling. Both ceilings are inclusive.
// A failed duration probe is logged and the source is accepted.
func (v *Validator) Validate(ctx context.Context, src media.Source) error {
	ext := src.Ext()
	if _, ok := v.extensions[ext]; !ok {
		return fmt.Errorf("%w: %q is not one of %s", media.ErrUnsupportedFormat, ext, v.allowed())
	}

	if src.Size > v.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d MiB", media.ErrFileTooLarge, src.Size, v.maxBytes/(1024*1024))
	}

	if src.Path == "" || v.prober == nil {
		return nil
	}
	if _, err := os.Stat(src.Path); err != nil {
		return nil
	}

	duration, err := v.prober.Duration(ctx, src.Path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		v.logger.Warn().Err(err).Str("source", src.Name).Msg("could not check video duration, continuing")
		metrics.ProbeFailuresTotal.Inc()
		return nil
	}
	if duration > v.maxDuration {
		return fmt.Errorf("%w: %.1fs exceeds limit of %.0fs", media.ErrDurationExceeded, duration, v.maxDuration)
	}
	return nil
}

func (v *Validator) allowed() string {
	out := make([]string, 0, len(DefaultExtensions))
	for _, ext := range DefaultExtensions {
		if _, ok := v.extensions[ext]; ok {
			out = append(out, strings.ToUpper(ext))
		}
	}
	for ext := range v.extensions {
		if !contains(DefaultExtensions, ext) {
			out = append(out, strings.ToUpper(ext))
		}
	}
	return strings.Join(out, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

