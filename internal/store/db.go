package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// schema is applied on startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		role            TEXT NOT NULL CHECK (role IN ('admin', 'student')),
		full_name       TEXT NOT NULL DEFAULT '',
		sex             TEXT NOT NULL DEFAULT '',
		dob             TEXT NOT NULL DEFAULT '',
		blood_group     TEXT NOT NULL DEFAULT '',
		course          TEXT NOT NULL DEFAULT '',
		reg_no          TEXT UNIQUE,
		level           TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		passport_path   TEXT NOT NULL DEFAULT '',
		signature_path  TEXT NOT NULL DEFAULT '',
		receipt_path    TEXT NOT NULL DEFAULT '',
		is_approved     BOOLEAN NOT NULL DEFAULT FALSE,
		id_print_count  INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS print_log (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		printed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS print_log_user_id_idx ON print_log (user_id)`,
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &DB{Client: db}, nil
}

// Migrate creates the tables the service needs.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
