package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS carts (
		user_id    TEXT PRIMARY KEY,
		cart_items JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart_events (
		id             UUID PRIMARY KEY,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		data           JSONB NOT NULL,
		version        INT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		UNIQUE (aggregate_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS read_cart_activity (
		user_id         TEXT PRIMARY KEY,
		cart_id         TEXT NOT NULL,
		item_count      INT NOT NULL,
		subtotal        NUMERIC NOT NULL,
		total           NUMERIC NOT NULL,
		last_event      TEXT NOT NULL,
		last_service_id TEXT NOT NULL DEFAULT '',
		event_count     INT NOT NULL,
		cleared_count   INT NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the tables this service writes to
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
