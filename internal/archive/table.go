package archive

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/remindchat/internal/metrics"
	"github.com/rickgao/remindchat/internal/router"
)

// table batches one queue into one table.
type table[T any] struct {
	kind      string
	input     *router.GrowableBuffer[T]
	batchSize int
	queue     func(*pgx.Batch, T)

	mu    sync.Mutex
	batch []T
	stats TableStats
}

func newTable[T any](kind string, input *router.GrowableBuffer[T], batchSize int, queue func(*pgx.Batch, T)) *table[T] {
	return &table[T]{
		kind:      kind,
		input:     input,
		batchSize: batchSize,
		queue:     queue,
		batch:     make([]T, 0, batchSize),
	}
}

// consumeLoop drains the input queue and accumulates batches.
func (t *table[T]) consumeLoop(w *Writer) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		items := t.input.DrainTo(t.batchSize)
		if len(items) == 0 {
			// Queue empty, wait a bit before trying again
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		if t.add(items) {
			t.flush(w.ctx, w)
		}
	}
}

// add appends items and reports whether the batch is full.
func (t *table[T]) add(items []T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batch = append(t.batch, items...)
	return len(t.batch) >= t.batchSize
}

func (t *table[T]) drainAll() {
	if items := t.input.DrainTo(0); len(items) > 0 {
		t.add(items)
	}
}

// flush writes the current batch. Failed batches are dropped and counted.
func (t *table[T]) flush(ctx context.Context, w *Writer) {
	t.mu.Lock()
	if len(t.batch) == 0 {
		t.mu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := t.batch
	t.batch = make([]T, 0, t.batchSize)
	t.mu.Unlock()

	start := time.Now()

	conflicts, err := t.insert(ctx, w.db, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "kind", t.kind, "error", err, "count", len(batch))
		metrics.AddArchiveRows(ctx, t.kind, "error", int64(len(batch)))
		t.mu.Lock()
		t.stats.Errors++
		t.mu.Unlock()
		return
	}

	inserted := len(batch) - conflicts
	metrics.AddArchiveRows(ctx, t.kind, "inserted", int64(inserted))
	metrics.AddArchiveRows(ctx, t.kind, "conflict", int64(conflicts))

	t.mu.Lock()
	t.stats.Inserts += int64(inserted)
	t.stats.Conflicts += int64(conflicts)
	t.stats.Flushes++
	t.mu.Unlock()

	w.logger.Debug("flushed archive batch",
		"kind", t.kind,
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// insert sends rows as one pgx.Batch with ON CONFLICT DO NOTHING.
func (t *table[T]) insert(ctx context.Context, db BatchSender, rows []T) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		t.queue(batch, r)
	}

	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

func (t *table[T]) snapshot() TableStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
