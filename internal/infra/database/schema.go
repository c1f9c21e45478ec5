package database

import (
	"context"
	"fmt"
)

//nolint:gochecknoglobals
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE,
		password_hash BLOB    NOT NULL,
		role          TEXT    NOT NULL DEFAULT 'member',
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		title        TEXT    NOT NULL,
		author       TEXT    NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity >= 0),
		publish_date TEXT    NOT NULL,
		cover_id     TEXT    NOT NULL DEFAULT '',
		cover_type   TEXT    NOT NULL DEFAULT '',
		is_deleted   BOOLEAN NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users (id),
		book_id     INTEGER NOT NULL REFERENCES books (id),
		status      TEXT    NOT NULL CHECK (status IN ('borrowed', 'returned')),
		borrowed_at INTEGER NOT NULL,
		returned_at INTEGER
	)`,
}

//nolint:gochecknoglobals
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT   NOT NULL UNIQUE,
		password_hash BYTEA  NOT NULL,
		role          TEXT   NOT NULL DEFAULT 'member',
		created_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id           BIGSERIAL PRIMARY KEY,
		title        TEXT    NOT NULL,
		author       TEXT    NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity >= 0),
		publish_date TEXT    NOT NULL,
		cover_id     TEXT    NOT NULL DEFAULT '',
		cover_type   TEXT    NOT NULL DEFAULT '',
		is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   BIGINT  NOT NULL,
		updated_at   BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users (id),
		book_id     BIGINT NOT NULL REFERENCES books (id),
		status      TEXT   NOT NULL CHECK (status IN ('borrowed', 'returned')),
		borrowed_at BIGINT NOT NULL,
		returned_at BIGINT
	)`,
}

// Shared by both dialects.
//
//nolint:gochecknoglobals
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS loans_one_active
		ON loans (user_id, book_id) WHERE status = 'borrowed'`,
	`CREATE INDEX IF NOT EXISTS loans_user ON loans (user_id, borrowed_at)`,
	`CREATE INDEX IF NOT EXISTS books_live ON books (is_deleted, id)`,
}

// Migrate creates missing tables and indexes. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if db.cfg.Driver == DriverPostgres {
		statements = postgresSchema
	}

	statements = append(append([]string(nil), statements...), indexes...)

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	db.log.DebugContext(ctx, "schema migrated", "statements", len(statements))

	return nil
}
