package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

type ReprocessRequest struct {
	TargetResolution *media.Resolution `json:"target_resolution,omitempty"`
}

type VideoResponse struct {
	ID               uuid.UUID        `json:"id"`
	Caption          string           `json:"caption"`
	Source           string           `json:"source"`
	SourceSize       int64            `json:"source_size"`
	TargetResolution media.Resolution `json:"target_resolution"`
	ProcessedStream  *string          `json:"processed_stream"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type ListResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func toVideoResponse(v *models.Video) VideoResponse {
	return VideoResponse{
		ID:               v.ID,
		Caption:          v.Caption,
		Source:           v.SourceName,
		SourceSize:       v.SourceSize,
		TargetResolution: v.TargetResolution,
		ProcessedStream:  v.ProcessedStream,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}
