package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/hls-vod/internal/video/models"
	"github.com/romariotrain/hls-vod/internal/video/repository"
)

type OutboxRepo struct {
	db    *sqlx.DB
	clock func() time.Time
}

func NewOutboxRepo(db *sqlx.DB) *OutboxRepo {
	return &OutboxRepo{db: db, clock: time.Now}
}

func (r *OutboxRepo) AddTx(ctx context.Context, tx repository.Tx, event models.DomainEvent) error {
	if event == nil {
		return models.ErrInvalidArgument
	}
	sqlTx, err := asSQLTx(tx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	q := r.db.Rebind(`
		INSERT INTO outbox (event_id, event_type, aggregate_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err = sqlTx.ExecContext(ctx, q,
		event.EventID(),
		event.EventType(),
		event.AggregateID(),
		payload,
		event.OccurredAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (r *OutboxRepo) GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	q := r.db.Rebind(`
		SELECT id, event_id, event_type, aggregate_id, payload, occurred_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`)

	records := []models.OutboxRecord{}
	if err := r.db.SelectContext(ctx, &records, q, limit); err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}
	return records, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	q := r.db.Rebind(`UPDATE outbox SET processed_at = ? WHERE id = ? AND processed_at IS NULL`)
	res, err := r.db.ExecContext(ctx, q, r.clock().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
