package router

import (
	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/model"
)

// RouterConfig holds configuration for the event router.
type RouterConfig struct {
	// Archive queues. Zero disables archiving of that kind.
	ChatBufferSize         int // Default: 256
	NotificationBufferSize int // Default: 64

	// Upper bound for each archive queue; the oldest entry is dropped beyond it.
	MaxBufferSize int // Default: 65536
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ChatBufferSize:         256,
		NotificationBufferSize: 64,
		MaxBufferSize:          65536,
	}
}

// Sink consumes routed events. Methods run on the connection's dispatch
// goroutine and must not block.
type Sink interface {
	HandleChat(msg model.ChatMessage)
	HandleNotification(n model.Notification)
	HandleStatus(s model.Status)
	HandleUnknown(ev connection.Event)
}

// NopSink implements Sink with no-ops; embed it to handle a subset.
type NopSink struct{}

func (NopSink) HandleChat(model.ChatMessage)          {}
func (NopSink) HandleNotification(model.Notification) {}
func (NopSink) HandleStatus(model.Status)             {}
func (NopSink) HandleUnknown(connection.Event)        {}

// RouterBuffers exposes the archive queues for writers.
type RouterBuffers struct {
	Chat         *GrowableBuffer[model.ChatMessage]  // nil when disabled
	Notification *GrowableBuffer[model.Notification] // nil when disabled
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	EventsReceived  int64
	Chat            int64
	Notifications   int64
	Statuses        int64
	UnknownMessages int64
	ChatBuffer      BufferStats
	NotifyBuffer    BufferStats
}
