package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultConnectTimeout = 10 * time.Second

// Config captures the settings for the Postgres credential store.
type Config struct {
	DSN            string
	ConnectTimeout time.Duration
	MaxOpenConns   int
	MaxIdleConns   int
	MaxIdleTime    time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'normal' CHECK (role IN ('admin', 'normal')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT users_username_key UNIQUE (username)
)`

// Connect opens a pgx-backed *sql.DB, pings it and applies the schema.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// sql.Open does not dial; ping to surface bad DSNs at startup.
	if err := db.PingContext(connectCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if _, err := db.ExecContext(connectCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return db, nil
}
