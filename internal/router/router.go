package router

import (
	"log/slog"
	"sync"

	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/model"
)

// Router turns parsed connection events into domain values and fans them out
// to sinks and archive queues. It implements connection.EventHandler.
type Router struct {
	cfg    RouterConfig
	logger *slog.Logger

	sinksMu sync.RWMutex
	sinks   []Sink

	chatBuf   *GrowableBuffer[model.ChatMessage]
	notifyBuf *GrowableBuffer[model.Notification]

	mu            sync.Mutex
	received      int64
	chat          int64
	notifications int64
	statuses      int64
	unknown       int64
}

var _ connection.EventHandler = (*Router)(nil)

// NewRouter creates a new event router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		cfg:    cfg,
		logger: logger,
	}
	if cfg.ChatBufferSize > 0 {
		r.chatBuf = NewGrowableBuffer[model.ChatMessage](cfg.ChatBufferSize, cfg.MaxBufferSize)
	}
	if cfg.NotificationBufferSize > 0 {
		r.notifyBuf = NewGrowableBuffer[model.Notification](cfg.NotificationBufferSize, cfg.MaxBufferSize)
	}
	return r
}

// AddSink registers a sink. Sinks are called in registration order.
func (r *Router) AddSink(s Sink) {
	r.sinksMu.Lock()
	defer r.sinksMu.Unlock()
	r.sinks = append(r.sinks, s)
}

// HandleEvent routes one event.
func (r *Router) HandleEvent(ev connection.Event) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	r.sinksMu.RLock()
	sinks := r.sinks
	r.sinksMu.RUnlock()

	switch ev.Type {
	case connection.EventMessage:
		sender := model.SenderUser
		if ev.IsBot {
			sender = model.SenderBot
		}
		msg := model.NewChatMessage(ev.Text, sender, ev.ReceivedAt)
		r.count(&r.chat)
		if r.chatBuf != nil {
			r.chatBuf.Send(msg)
		}
		for _, s := range sinks {
			s.HandleChat(msg)
		}

	case connection.EventNotification:
		n := model.NewNotification(ev.Task, ev.ReceivedAt)
		r.count(&r.notifications)
		if r.notifyBuf != nil {
			r.notifyBuf.Send(n)
		}
		for _, s := range sinks {
			s.HandleNotification(n)
		}

	case connection.EventConfirmation, connection.EventError:
		st := model.Status{
			Kind:       model.StatusKind(ev.Type),
			Message:    ev.Message,
			ReceivedAt: ev.ReceivedAt,
		}
		r.count(&r.statuses)
		if st.IsError() {
			r.logger.Warn("service reported error", "message", st.Message)
		}
		for _, s := range sinks {
			s.HandleStatus(st)
		}

	default:
		r.count(&r.unknown)
		r.logger.Debug("unhandled event type", "type", ev.Type)
		for _, s := range sinks {
			s.HandleUnknown(ev)
		}
	}
}

// Buffers returns the archive queues.
func (r *Router) Buffers() RouterBuffers {
	return RouterBuffers{
		Chat:         r.chatBuf,
		Notification: r.notifyBuf,
	}
}

// Close closes the archive queues so writers drain and exit.
func (r *Router) Close() {
	if r.chatBuf != nil {
		r.chatBuf.Close()
	}
	if r.notifyBuf != nil {
		r.notifyBuf.Close()
	}
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	stats := RouterStats{
		EventsReceived:  r.received,
		Chat:            r.chat,
		Notifications:   r.notifications,
		Statuses:        r.statuses,
		UnknownMessages: r.unknown,
	}
	r.mu.Unlock()

	if r.chatBuf != nil {
		stats.ChatBuffer = r.chatBuf.Stats()
	}
	if r.notifyBuf != nil {
		stats.NotifyBuffer = r.notifyBuf.Stats()
	}
	return stats
}

func (r *Router) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
