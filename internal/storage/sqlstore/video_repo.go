package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/hls-vod/internal/video/models"
	"github.com/romariotrain/hls-vod/internal/video/repository"
)

const videoColumns = `id, caption, source_name, source_path, source_size, target_resolution, processed_stream, created_at, updated_at`

type VideoRepo struct {
	db *sqlx.DB
}

func NewVideoRepo(db *sqlx.DB) *VideoRepo {
	return &VideoRepo{db: db}
}

func (r *VideoRepo) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *VideoRepo) CreateTx(ctx context.Context, tx repository.Tx, v *models.Video) error {
	if v == nil || v.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	sqlTx, err := asSQLTx(tx)
	if err != nil {
		return err
	}

	q := r.db.Rebind(`INSERT INTO videos (` + videoColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = sqlTx.ExecContext(ctx, q,
		v.ID, v.Caption, v.SourceName, v.SourcePath, v.SourceSize,
		v.TargetResolution, v.ProcessedStream, v.CreatedAt.UTC(), v.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("video create: %w", err)
	}
	return nil
}

func (r *VideoRepo) UpdateTx(ctx context.Context, tx repository.Tx, v *models.Video) error {
	if v == nil || v.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	sqlTx, err := asSQLTx(tx)
	if err != nil {
		return err
	}

	q := r.db.Rebind(`
		UPDATE videos
		SET caption = ?, target_resolution = ?, processed_stream = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := sqlTx.ExecContext(ctx, q, v.Caption, v.TargetResolution, v.ProcessedStream, v.UpdatedAt.UTC(), v.ID)
	if err != nil {
		return fmt.Errorf("video update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("video update: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	q := r.db.Rebind(`SELECT ` + videoColumns + ` FROM videos WHERE id = ?`)

	var v models.Video
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video get by id: %w", err)
	}
	return &v, nil
}

func (r *VideoRepo) List(ctx context.Context, f models.ListFilter) ([]*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos`
	var args []any
	if f.TargetResolution != "" {
		q += ` WHERE target_resolution = ?`
		args = append(args, f.TargetResolution)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	q += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	videos := []*models.Video{}
	if err := r.db.SelectContext(ctx, &videos, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("video list: %w", err)
	}
	return videos, nil
}
