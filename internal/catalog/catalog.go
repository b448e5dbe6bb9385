// Package catalog mirrors published videos into a secondary catalog store.
// The catalog is not the system of record: mirroring is best effort.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
)

const (
	DefaultStatus     = "Aktif"
	DefaultCategoryID = 2
	defaultTimeout    = 10 * time.Second
)

// Entry is one catalog row.
type Entry struct {
	Title      string    `db:"judul"`
	URL        string    `db:"link"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
	CategoryID int       `db:"kategori_id"`
	Views      int       `db:"views"`
}

// Sink inserts entries into a catalog store.
type Sink interface {
	Insert(ctx context.Context, e Entry) error
}

// Record is what the pipeline knows about a freshly published video.
type Record struct {
	VideoID string
	Title   string
	URL     string
	// RelativePath is the playlist path under the public media root.
	RelativePath string
}

type MirrorConfig struct {
	Sink       Sink
	Status     string
	CategoryID int
	// BaseURL, when set, replaces the public base URL in the catalog link.
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Mirror turns published records into catalog entries.
type Mirror struct {
	sink       Sink
	status     string
	categoryID int
	baseURL    string
	timeout    time.Duration
	logger     zerolog.Logger
	clock      func() time.Time
}

func NewMirror(cfg MirrorConfig) *Mirror {
	if cfg.Sink == nil {
		cfg.Sink = NewLogSink(cfg.Logger)
	}
	if cfg.Status == "" {
		cfg.Status = DefaultStatus
	}
	if cfg.CategoryID == 0 {
		cfg.CategoryID = DefaultCategoryID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Mirror{
		sink:       cfg.Sink,
		status:     cfg.Status,
		categoryID: cfg.CategoryID,
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger.With().Str("component", "catalog").Logger(),
		clock:      time.Now,
	}
}

// Sync inserts one active row with zero views for rec. Errors wrap
// media.ErrCatalogSyncFailed; callers log them and carry on.
func (m *Mirror) Sync(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	now := m.clock()
	entry := Entry{
		Title:      rec.Title,
		URL:        m.link(rec),
		Status:     m.status,
		CreatedAt:  now,
		UpdatedAt:  now,
		CategoryID: m.categoryID,
		Views:      0,
	}
	if err := m.sink.Insert(ctx, entry); err != nil {
		return fmt.Errorf("%w: %v", media.ErrCatalogSyncFailed, err)
	}
	m.logger.Info().Str("video_id", rec.VideoID).Str("link", entry.URL).Msg("catalog synced")
	return nil
}

func (m *Mirror) link(rec Record) string {
	if m.baseURL == "" || rec.RelativePath == "" {
		return rec.URL
	}
	return strings.TrimRight(m.baseURL, "/") + "/" + strings.TrimLeft(rec.RelativePath, "/")
}

// LogSink only logs entries. It stands in when no catalog store is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "catalog_log_sink").Logger()}
}

func (s *LogSink) Insert(_ context.Context, e Entry) error {
	s.logger.Info().
		Str("title", e.Title).
		Str("link", e.URL).
		Str("status", e.Status).
		Int("category_id", e.CategoryID).
		Msg("catalog entry (no store configured)")
	return nil
}
