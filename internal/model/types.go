package model

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one line of the chat transcript.
type ChatMessage struct {
	ID        uuid.UUID // Primary key
	Text      string    // Message body
	Sender    Sender    // "user" or "bot"
	Timestamp time.Time // When the client saw it
}

// NewChatMessage creates a message with a fresh ID.
func NewChatMessage(text string, sender Sender, ts time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.New(),
		Text:      text,
		Sender:    sender,
		Timestamp: ts,
	}
}

// IsBot reports whether the bot wrote the message.
func (m ChatMessage) IsBot() bool {
	return m.Sender == SenderBot
}

// Notification is a due reminder pushed by the service.
type Notification struct {
	ID         uuid.UUID // Primary key
	Task       string    // Reminder task text
	ReceivedAt time.Time
}

// NewNotification creates a notification with a fresh ID.
func NewNotification(task string, receivedAt time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		Task:       task,
		ReceivedAt: receivedAt,
	}
}

// StatusKind distinguishes service acknowledgements from failures.
type StatusKind string

const (
	StatusConfirmation StatusKind = "confirmation"
	StatusError        StatusKind = "error"
)

// Status is a one-line service acknowledgement or error.
type Status struct {
	Kind       StatusKind
	Message    string
	ReceivedAt time.Time
}

// IsError reports whether the status describes a failure.
func (s Status) IsError() bool {
	return s.Kind == StatusError
}
