package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStopped            = errors.New("connection manager stopped")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrStaleConnection    = errors.New("connection stale (no pong)")
	ErrAlreadyClosed      = errors.New("already closed")
)

// Close codes reported to Listener.OnClose.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// State is the observable connection state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateErrored
)

// String returns the state name used in logs and the CLI status line.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateErrored:
		// The service's clients label this state ERROR; keep the same word.
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event types emitted by the reminder service.
const (
	EventMessage      = "message"
	EventNotification = "notification"
	EventConfirmation = "confirmation"
	EventError        = "error"
)

// Event is a parsed inbound frame.
//
// Only JSON-parseability is required; the well-known fields are filled in
// when the frame is an object carrying them, and Raw always holds the frame
// verbatim so unknown shapes pass through untouched.
type Event struct {
	Type       string // "message", "notification", "confirmation", "error", or anything else
	Text       string // message: chat text
	IsBot      bool   // message: true when the bot sent it
	Task       string // notification: reminder task description
	Message    string // confirmation/error: human-readable text
	Raw        json.RawMessage
	ReceivedAt time.Time
}

// EventHandler receives parsed inbound events.
type EventHandler interface {
	HandleEvent(ev Event)
}

// EventHandlerFunc is a function adapter for EventHandler.
type EventHandlerFunc func(Event)

func (f EventHandlerFunc) HandleEvent(ev Event) {
	f(ev)
}

// ParseError reports an inbound frame that is not valid JSON.
type ParseError struct {
	Payload []byte
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse inbound event: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Config configures the Connection Manager.
type Config struct {
	URL         string        // Realtime endpoint (ws://, wss://, http:// or https://)
	MaxAttempts int           // Reconnects allowed before settling in Errored (>= 0)
	BaseDelay   time.Duration // Delay before the first reconnect; doubles per attempt
	MaxDelay    time.Duration // Optional cap on the reconnect delay (0 = uncapped)
}

// DefaultConfig returns the reconnect policy observed in the web client.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   3 * time.Second,
	}
}

// DialerConfig configures the gorilla-backed transport.
type DialerConfig struct {
	Header           http.Header   // Extra handshake headers
	APIKey           string        // Sent as "Authorization: Bearer <key>" when set
	HandshakeTimeout time.Duration // WebSocket handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping period (0 disables the heartbeat)
	PingTimeout      time.Duration // Max time without a pong before the connection is stale
}

// DefaultDialerConfig returns sensible defaults.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
	}
}
