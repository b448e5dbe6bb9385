// Package policy maps a target resolution to concrete encoder parameters.
package policy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/metrics"
)

// Preset is one row of the quality table. Bitrates are in kbit/s.
type Preset struct {
	Width      int
	Height     int
	MaxBitrate int
	BufferSize int
}

// DefaultTable is the encode quality table for named targets.
func DefaultTable() map[media.Resolution]Preset {
	return map[media.Resolution]Preset{
		media.Resolution360p:  {Width: 640, Height: 360, MaxBitrate: 800, BufferSize: 1600},
		media.Resolution480p:  {Width: 854, Height: 480, MaxBitrate: 1200, BufferSize: 2400},
		media.Resolution720p:  {Width: 1280, Height: 720, MaxBitrate: 2500, BufferSize: 5000},
		media.Resolution1080p: {Width: 1920, Height: 1080, MaxBitrate: 4000, BufferSize: 8000},
	}
}

// DefaultOriginal is used for the original target: its bitrate pair always
// applies, its frame size only when the source cannot be probed.
var DefaultOriginal = Preset{Width: 1280, Height: 720, MaxBitrate: 4000, BufferSize: 8000}

type DimensionProber interface {
	Dimensions(ctx context.Context, path string) (int, int, error)
}

type Config struct {
	Table    map[media.Resolution]Preset
	Original Preset
	Prober   DimensionProber
	Logger   zerolog.Logger
}

type Policy struct {
	table    map[media.Resolution]Preset
	original Preset
	prober   DimensionProber
	logger   zerolog.Logger
}

func New(cfg Config) *Policy {
	table := DefaultTable()
	for k, v := range cfg.Table {
		table[k] = v
	}
	original := DefaultOriginal
	if cfg.Original.Width > 0 && cfg.Original.Height > 0 {
		original.Width, original.Height = cfg.Original.Width, cfg.Original.Height
	}
	if cfg.Original.MaxBitrate > 0 && cfg.Original.BufferSize > 0 {
		original.MaxBitrate, original.BufferSize = cfg.Original.MaxBitrate, cfg.Original.BufferSize
	}
	return &Policy{
		table:    table,
		original: original,
		prober:   cfg.Prober,
		logger:   cfg.Logger.With().Str("component", "policy").Logger(),
	}
}

// Resolve returns the encode parameters for target. Named targets are a pure
// table lookup. For the original target the source is probed for its frame
// size; a failed probe falls back to the configured default size.
func (p *Policy) Resolve(ctx context.Context, target media.Resolution, sourcePath string) (media.EncodeParams, error) {
	if target == media.ResolutionOriginal {
		return p.resolveOriginal(ctx, sourcePath), nil
	}
	preset, ok := p.table[target]
	if !ok {
		return media.EncodeParams{}, fmt.Errorf("no encode preset for target %q", target)
	}
	return media.EncodeParams{
		Width:      preset.Width,
		Height:     preset.Height,
		MaxBitrate: preset.MaxBitrate,
		BufferSize: preset.BufferSize,
		Scale:      true,
	}, nil
}

func (p *Policy) resolveOriginal(ctx context.Context, sourcePath string) media.EncodeParams {
	params := media.EncodeParams{
		Width:      p.original.Width,
		Height:     p.original.Height,
		MaxBitrate: p.original.MaxBitrate,
		BufferSize: p.original.BufferSize,
	}
	if p.prober == nil {
		return params
	}
	w, h, err := p.prober.Dimensions(ctx, sourcePath)
	if err != nil {
		p.logger.Warn().Err(err).Str("fallback", params.Size()).Msg("could not detect source resolution")
		metrics.ProbeFailuresTotal.Inc()
		return params
	}
	params.Width, params.Height = w, h
	return params
}
