package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/hls-vod/internal/media"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// VideoPublished is recorded when a rendition becomes the processed stream of a video.
type VideoPublished struct {
	eventID    uuid.UUID
	videoID    uuid.UUID
	caption    string
	target     media.Resolution
	url        string
	path       string
	reprocess  bool
	occurredAt time.Time
}

func NewVideoPublished(v *Video, relativePath string, reprocess bool, at time.Time) *VideoPublished {
	url := ""
	if v.ProcessedStream != nil {
		url = *v.ProcessedStream
	}
	return &VideoPublished{
		eventID:    uuid.New(),
		videoID:    v.ID,
		caption:    v.Caption,
		target:     v.TargetResolution,
		url:        url,
		path:       relativePath,
		reprocess:  reprocess,
		occurredAt: at,
	}
}

func (e *VideoPublished) EventID() uuid.UUID     { return e.eventID }
func (e *VideoPublished) EventType() string      { return "VideoPublished" }
func (e *VideoPublished) AggregateID() uuid.UUID { return e.videoID }
func (e *VideoPublished) OccurredAt() time.Time  { return e.occurredAt }

func (e *VideoPublished) URL() string     { return e.url }
func (e *VideoPublished) Reprocess() bool { return e.reprocess }

func (e *VideoPublished) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID          uuid.UUID        `json:"event_id"`
		VideoID          uuid.UUID        `json:"video_id"`
		Caption          string           `json:"caption"`
		TargetResolution media.Resolution `json:"target_resolution"`
		URL              string           `json:"url"`
		Path             string           `json:"path"`
		Reprocess        bool             `json:"reprocess"`
		OccurredAt       time.Time        `json:"occurred_at"`
	}{
		EventID:          e.eventID,
		VideoID:          e.videoID,
		Caption:          e.caption,
		TargetResolution: e.target,
		URL:              e.url,
		Path:             e.path,
		Reprocess:        e.reprocess,
		OccurredAt:       e.occurredAt,
	})
}
