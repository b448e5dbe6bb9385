package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/hls-vod/internal/media"
)

const MaxCaptionLength = 100

// Video is the persisted record of one uploaded video.
type Video struct {
	ID      uuid.UUID `db:"id"`
	Caption string    `db:"caption"`
	// SourceName is the source path relative to the upload root, slash separated.
	SourceName       string           `db:"source_name"`
	SourcePath       string           `db:"source_path"`
	SourceSize       int64            `db:"source_size"`
	TargetResolution media.Resolution `db:"target_resolution"`
	// ProcessedStream is nil until a rendition has been published.
	ProcessedStream *string   `db:"processed_stream"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (v *Video) Source() media.Source {
	return media.Source{Name: v.SourceName, Path: v.SourcePath, Size: v.SourceSize}
}

func (v *Video) Processed() bool {
	return v.ProcessedStream != nil
}

// ListFilter narrows video listings. Zero values match everything.
type ListFilter struct {
	TargetResolution media.Resolution
	Limit            int
	Offset           int
}
