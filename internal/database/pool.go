package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/benzinga-stream/internal/config"
)

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig, applicationName string) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg, applicationName)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", Redact(connStr), err)
	}

	return pool, nil
}

// Execer is the subset of pgxpool.Pool used for DDL.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the news sink tables. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS news_events (
		id          BIGINT      NOT NULL,
		symbol      TEXT        NOT NULL,
		author      TEXT        NOT NULL DEFAULT '',
		created_at  BIGINT      NOT NULL,
		updated_at  BIGINT      NOT NULL,
		title       TEXT        NOT NULL DEFAULT '',
		teaser      TEXT        NOT NULL DEFAULT '',
		body        TEXT        NOT NULL DEFAULT '',
		url         TEXT        NOT NULL DEFAULT '',
		channels    TEXT[]      NOT NULL DEFAULT '{}',
		tags        TEXT[]      NOT NULL DEFAULT '{}',
		symbols     TEXT[]      NOT NULL DEFAULT '{}',
		received_at BIGINT      NOT NULL,
		PRIMARY KEY (id, symbol, updated_at)
	)`,
	`CREATE INDEX IF NOT EXISTS news_events_symbol_created_idx ON news_events (symbol, created_at DESC)`,
}

// EnsureSchema applies Schema in order.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
