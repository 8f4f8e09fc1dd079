package archive

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/remindchat/internal/model"
	"github.com/rickgao/remindchat/internal/router"
)

// fakeDB records batches and reports a conflict for ids it has already seen.
type fakeDB struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]bool
	batches []*pgx.Batch
	err     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{seen: make(map[uuid.UUID]bool)}
}

func (db *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.batches = append(db.batches, b)

	res := &fakeResults{err: db.err}
	for _, q := range b.QueuedQueries {
		id := q.Arguments[0].(uuid.UUID)
		if db.seen[id] {
			res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 0"))
			continue
		}
		db.seen[id] = true
		res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 1"))
	}
	return res
}

func (db *fakeDB) rows() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, b := range db.batches {
		n += b.Len()
	}
	return n
}

type fakeResults struct {
	tags []pgconn.CommandTag
	err  error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	tag := r.tags[0]
	r.tags = r.tags[1:]
	return tag, nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

var ts = time.Date(2024, 7, 9, 10, 30, 0, 0, time.UTC)

func buffers() router.RouterBuffers {
	return router.RouterBuffers{
		Chat:         router.NewGrowableBuffer[model.ChatMessage](8, 0),
		Notification: router.NewGrowableBuffer[model.Notification](8, 0),
	}
}

func TestWriter_FlushInsertsRows(t *testing.T) {
	bufs := buffers()
	db := newFakeDB()
	w := NewWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, bufs, db, nil)

	msg := model.NewChatMessage("Reminder set for 1 PM", model.SenderBot, ts)
	w.chat.add([]model.ChatMessage{msg, model.NewChatMessage("hi", model.SenderUser, ts)})
	w.notify.add([]model.Notification{model.NewNotification("Collect blood culture", ts)})

	w.Flush(context.Background())

	if got := db.rows(); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}

	q := db.batches[0].QueuedQueries[0]
	if !strings.Contains(q.SQL, "INSERT INTO chat_messages") || !strings.Contains(q.SQL, "ON CONFLICT (id) DO NOTHING") {
		t.Errorf("unexpected SQL: %s", q.SQL)
	}
	if q.Arguments[0] != msg.ID || q.Arguments[1] != "bot" || q.Arguments[2] != "Reminder set for 1 PM" {
		t.Errorf("arguments = %v", q.Arguments)
	}

	stats := w.Stats()
	if stats.Chat.Inserts != 2 || stats.Chat.Flushes != 1 {
		t.Errorf("chat stats = %+v", stats.Chat)
	}
	if stats.Notifications.Inserts != 1 {
		t.Errorf("notification stats = %+v", stats.Notifications)
	}
}

func TestWriter_ConflictsCounted(t *testing.T) {
	bufs := buffers()
	db := newFakeDB()
	w := NewWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, bufs, db, nil)

	msg := model.NewChatMessage("x", model.SenderBot, ts)
	w.chat.add([]model.ChatMessage{msg})
	w.Flush(context.Background())
	w.chat.add([]model.ChatMessage{msg})
	w.Flush(context.Background())

	stats := w.Stats().Chat
	if stats.Inserts != 1 || stats.Conflicts != 1 {
		t.Errorf("stats = %+v, want 1 insert and 1 conflict", stats)
	}
}

func TestWriter_InsertError(t *testing.T) {
	bufs := buffers()
	db := newFakeDB()
	db.err = errors.New("relation \"chat_messages\" does not exist")
	w := NewWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, bufs, db, nil)

	w.chat.add([]model.ChatMessage{model.NewChatMessage("x", model.SenderBot, ts)})
	w.Flush(context.Background())

	if got := w.Stats().Chat.Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}

	// The failed batch is dropped, not retried.
	db.err = nil
	w.Flush(context.Background())
	if got := len(db.batches); got != 1 {
		t.Errorf("batches = %d, want 1", got)
	}
}

func TestWriter_BatchSizeTriggersFlush(t *testing.T) {
	bufs := buffers()
	db := newFakeDB()
	w := NewWriter(Config{BatchSize: 3, FlushInterval: time.Hour}, bufs, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		bufs.Chat.Send(model.NewChatMessage("m", model.SenderBot, ts))
	}

	deadline := time.Now().Add(time.Second)
	for db.rows() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := db.rows(); got != 3 {
		t.Errorf("rows = %d, want 3 after a full batch", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestWriter_StopFlushesRemaining(t *testing.T) {
	bufs := buffers()
	db := newFakeDB()
	w := NewWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, bufs, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	bufs.Chat.Send(model.NewChatMessage("a", model.SenderUser, ts))
	bufs.Notification.Send(model.NewNotification("b", ts))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := db.rows(); got != 2 {
		t.Errorf("rows = %d, want 2 after stop", got)
	}
	if bufs.Chat.Len() != 0 || bufs.Notification.Len() != 0 {
		t.Error("queues not drained on stop")
	}
}

func TestWriter_NilQueuesSkipped(t *testing.T) {
	w := NewWriter(Config{}, router.RouterBuffers{}, newFakeDB(), nil)

	if w.cfg.BatchSize != DefaultConfig().BatchSize {
		t.Errorf("BatchSize = %d, want default", w.cfg.BatchSize)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if stats := w.Stats(); stats.Chat.Flushes != 0 || stats.Notifications.Flushes != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWriter_WithRouter(t *testing.T) {
	r := router.NewRouter(router.DefaultRouterConfig(), nil)
	db := newFakeDB()
	w := NewWriter(Config{BatchSize: 10, FlushInterval: time.Hour}, r.Buffers(), db, nil)

	r.Buffers().Chat.Send(model.NewChatMessage("via router queue", model.SenderBot, ts))
	w.chat.drainAll()
	w.Flush(context.Background())

	if got := db.rows(); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
}
