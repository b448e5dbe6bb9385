package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemas = map[string][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS videos (
			id                UUID PRIMARY KEY,
			caption           VARCHAR(100) NOT NULL,
			source_name       TEXT NOT NULL,
			source_path       TEXT NOT NULL,
			source_size       BIGINT NOT NULL,
			target_resolution VARCHAR(16) NOT NULL,
			processed_stream  TEXT NULL,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS videos_target_resolution_idx ON videos (target_resolution)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id           BIGSERIAL PRIMARY KEY,
			event_id     UUID NOT NULL UNIQUE,
			event_type   TEXT NOT NULL,
			aggregate_id UUID NOT NULL,
			payload      JSONB NOT NULL,
			occurred_at  TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE processed_at IS NULL`,
	},
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS videos (
			id                TEXT PRIMARY KEY,
			caption           TEXT NOT NULL,
			source_name       TEXT NOT NULL,
			source_path       TEXT NOT NULL,
			source_size       INTEGER NOT NULL,
			target_resolution TEXT NOT NULL,
			processed_stream  TEXT NULL,
			created_at        TIMESTAMP NOT NULL,
			updated_at        TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS videos_target_resolution_idx ON videos (target_resolution)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id     TEXT NOT NULL UNIQUE,
			event_type   TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload      BLOB NOT NULL,
			occurred_at  TIMESTAMP NOT NULL,
			processed_at TIMESTAMP NULL
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE processed_at IS NULL`,
	},
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
