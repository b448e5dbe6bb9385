package catalog

import (
	"context"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const DefaultTable = "multimedia"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSink inserts entries into a table with columns
// (judul, link, status, created_at, updated_at, kategori_id, views).
type SQLSink struct {
	db    *sqlx.DB
	query string
}

func NewSQLSink(db *sqlx.DB, table string) (*SQLSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid catalog table name %q", table)
	}
	q := `INSERT INTO ` + table + ` (judul, link, status, created_at, updated_at, kategori_id, views)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	return &SQLSink{db: db, query: db.Rebind(q)}, nil
}

// OpenSQLSink prepares a pool for driver/dsn without connecting; connection
// errors surface on Insert.
func OpenSQLSink(driver, dsn, table string) (*SQLSink, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	sink, err := NewSQLSink(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *SQLSink) Insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, s.query,
		e.Title, e.URL, e.Status, e.CreatedAt, e.UpdatedAt, e.CategoryID, e.Views,
	)
	if err != nil {
		return fmt.Errorf("catalog insert: %w", err)
	}
	return nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}
