package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS %s (
	email TEXT NOT NULL,
	name TEXT,
	unique_id TEXT,
	platform TEXT,
	access_token TEXT,
	refresh_token TEXT,
	expires_in INTEGER,
	scope TEXT,
	token_type TEXT,
	refresh_token_expires_in INTEGER,
	created_at TIMESTAMP NOT NULL
)`

type sqliteSink struct {
	db    *sql.DB
	table string
}

func openSQLite(ctx context.Context, dsn, table string) (*sqliteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrPersistenceFailed, err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite db: %w", ErrPersistenceFailed, err)
	}
	return &sqliteSink{db: db, table: `"` + table + `"`}, nil
}

func (s *sqliteSink) Ensure(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteSchema, s.table)); err != nil {
		return fmt.Errorf("%w: create table: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *sqliteSink) Insert(ctx context.Context, r Record) error {
	stmt := insertStatement(s.table, func(int) string { return "?" })
	if _, err := s.db.ExecContext(ctx, stmt, r.args()...); err != nil {
		return fmt.Errorf("%w: insert: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *sqliteSink) Close() error {
	return s.db.Close()
}
