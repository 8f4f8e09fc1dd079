package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Config holds writer configuration.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// TableStats tracks insert outcomes for one table.
type TableStats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// Stats tracks writer performance.
type Stats struct {
	Chat          TableStats
	Notifications TableStats
}

// BatchSender sends a queued batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const (
	insertChatSQL = `
		INSERT INTO chat_messages (id, sender, text, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	insertNotificationSQL = `
		INSERT INTO notifications (id, task, received_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`
)
