package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema lists the archive DDL in apply order. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id          UUID PRIMARY KEY,
		sender      TEXT NOT NULL,
		text        TEXT NOT NULL,
		sent_at     TIMESTAMPTZ NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_sent_at_idx ON chat_messages (sent_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id          UUID PRIMARY KEY,
		task        TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_received_at_idx ON notifications (received_at)`,
}

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
