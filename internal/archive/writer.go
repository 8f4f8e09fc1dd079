package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/remindchat/internal/model"
	"github.com/rickgao/remindchat/internal/router"
)

// Writer consumes the router's archive queues and writes them to Postgres.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	db     BatchSender

	chat   *table[model.ChatMessage]
	notify *table[model.Notification]

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	flushTicker *time.Ticker
}

// NewWriter creates a writer for the given queues. Nil queues are skipped.
func NewWriter(cfg Config, input router.RouterBuffers, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}

	w := &Writer{
		cfg:    cfg,
		logger: logger.With("component", "archive"),
		db:     db,
	}
	if input.Chat != nil {
		w.chat = newTable("chat", input.Chat, cfg.BatchSize, queueChat)
	}
	if input.Notification != nil {
		w.notify = newTable("notification", input.Notification, cfg.BatchSize, queueNotification)
	}
	return w
}

// Start begins consuming queues and flushing batches.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	if w.chat != nil {
		w.wg.Add(1)
		go w.chat.consumeLoop(w)
	}
	if w.notify != nil {
		w.wg.Add(1)
		go w.notify.consumeLoop(w)
	}

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the writer down and flushes whatever is still queued using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}

	// Final drain and flush
	w.eachTable(func(t flusher) {
		t.drainAll()
		t.flush(ctx, w)
	})

	w.logger.Info("archive writer stopped")
	return nil
}

// Flush writes any pending rows immediately.
func (w *Writer) Flush(ctx context.Context) {
	w.eachTable(func(t flusher) { t.flush(ctx, w) })
}

// Stats returns current metrics.
func (w *Writer) Stats() Stats {
	var s Stats
	if w.chat != nil {
		s.Chat = w.chat.snapshot()
	}
	if w.notify != nil {
		s.Notifications = w.notify.snapshot()
	}
	return s
}

// flushLoop periodically flushes every table.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.Flush(w.ctx)
		}
	}
}

type flusher interface {
	drainAll()
	flush(ctx context.Context, w *Writer)
}

func (w *Writer) eachTable(f func(flusher)) {
	if w.chat != nil {
		f(w.chat)
	}
	if w.notify != nil {
		f(w.notify)
	}
}

func queueChat(b *pgx.Batch, m model.ChatMessage) {
	b.Queue(insertChatSQL, m.ID, string(m.Sender), m.Text, m.Timestamp)
}

func queueNotification(b *pgx.Batch, n model.Notification) {
	b.Queue(insertNotificationSQL, n.ID, n.Task, n.ReceivedAt)
}
