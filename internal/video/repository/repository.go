package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/romariotrain/hls-vod/internal/video/models"
)

// Tx is a unit of work spanning video and outbox writes. Rollback after a
// successful Commit is a no-op.
type Tx interface {
	Commit() error
	Rollback() error
}

type VideoRepository interface {
	BeginTx(ctx context.Context) (Tx, error)
	CreateTx(ctx context.Context, tx Tx, v *models.Video) error
	// UpdateTx stores caption, target resolution, processed stream and updated_at.
	UpdateTx(ctx context.Context, tx Tx, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Video, error)
}

type OutboxRepository interface {
	AddTx(ctx context.Context, tx Tx, event models.DomainEvent) error
	GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}
