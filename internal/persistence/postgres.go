package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS %s (
	email TEXT NOT NULL,
	name TEXT,
	unique_id TEXT,
	platform TEXT,
	access_token TEXT,
	refresh_token TEXT,
	expires_in BIGINT,
	scope TEXT,
	token_type TEXT,
	refresh_token_expires_in BIGINT,
	created_at TIMESTAMPTZ NOT NULL
)`

type postgresSink struct {
	pool  *pgxpool.Pool
	table string
}

func openPostgres(ctx context.Context, dsn, table string) (*postgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: pgxpool: %w", ErrPersistenceFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", ErrPersistenceFailed, err)
	}
	return &postgresSink{pool: pool, table: pgx.Identifier{table}.Sanitize()}, nil
}

func (s *postgresSink) Ensure(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(postgresSchema, s.table)); err != nil {
		return fmt.Errorf("%w: create table: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *postgresSink) Insert(ctx context.Context, r Record) error {
	stmt := insertStatement(s.table, func(i int) string { return fmt.Sprintf("$%d", i) })
	if _, err := s.pool.Exec(ctx, stmt, r.args()...); err != nil {
		return fmt.Errorf("%w: insert: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *postgresSink) Close() error {
	s.pool.Close()
	return nil
}
