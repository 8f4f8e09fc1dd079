// Package chat holds the interactive chat session: the transcript, the
// active reminder toast and the latest status line.
package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/model"
	"github.com/rickgao/remindchat/internal/router"
)

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("empty message")

// Greeting is the bot message every transcript starts with.
const Greeting = "Hello!"

// Sender delivers outbound chat text. *connection.Manager satisfies it.
type Sender interface {
	Send(payload string) error
}

// Config configures a Session.
type Config struct {
	DismissAfter time.Duration // Toast lifetime (0 keeps toasts until dismissed)
}

// DefaultConfig returns the web client's toast lifetime.
func DefaultConfig() Config {
	return Config{DismissAfter: 5 * time.Second}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the clock used for toast expiry and timestamps.
func WithClock(c connection.Clock, now func() time.Time) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
		if now != nil {
			s.now = now
		}
	}
}

// Session is a router sink that keeps the chat view state.
type Session struct {
	cfg    Config
	sender Sender
	logger *slog.Logger
	clock  connection.Clock
	now    func() time.Time

	mu         sync.Mutex
	messages   []model.ChatMessage
	echoes     map[string]int // user texts sent and not yet echoed back
	toast      *model.Notification
	toastTimer connection.Timer
	toastGen   uint64
	status     *model.Status
	onChange   []func()
}

var _ router.Sink = (*Session)(nil)

// NewSession creates a session whose transcript starts with the greeting.
func NewSession(cfg Config, sender Sender, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg,
		sender: sender,
		logger: slog.Default(),
		clock:  systemClock{},
		now:    time.Now,
		echoes: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	s.messages = append(s.messages, model.NewChatMessage(Greeting, model.SenderBot, s.now()))
	return s
}

// OnChange registers a callback run after every visible change. Callbacks
// run without the session lock held.
func (s *Session) OnChange(f func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, f)
	s.mu.Unlock()
}

// Send appends the user's message and sends it. The message stays in the
// transcript even when sending fails.
func (s *Session) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	s.messages = append(s.messages, model.NewChatMessage(text, model.SenderUser, s.now()))
	s.echoes[text]++
	s.mu.Unlock()
	s.changed()

	if err := s.sender.Send(text); err != nil {
		s.mu.Lock()
		s.forgetEchoLocked(text)
		s.mu.Unlock()
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// HandleChat appends bot messages. User messages echoed by the service are
// already in the transcript and are dropped.
func (s *Session) HandleChat(m model.ChatMessage) {
	s.mu.Lock()
	if !m.IsBot() {
		if !s.forgetEchoLocked(m.Text) {
			s.logger.Debug("dropping user message not sent from this session", "text", m.Text)
		}
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	s.changed()
}

// HandleNotification makes n the active toast, replacing any older one.
func (s *Session) HandleNotification(n model.Notification) {
	s.mu.Lock()
	if s.toastTimer != nil {
		s.toastTimer.Stop()
		s.toastTimer = nil
	}
	s.toastGen++
	s.toast = &n
	if s.cfg.DismissAfter > 0 {
		gen := s.toastGen
		s.toastTimer = s.clock.AfterFunc(s.cfg.DismissAfter, func() { s.expireToast(gen) })
	}
	s.mu.Unlock()
	s.changed()
}

// HandleStatus records the latest confirmation or error.
func (s *Session) HandleStatus(st model.Status) {
	s.mu.Lock()
	s.status = &st
	s.mu.Unlock()
	s.changed()
}

// HandleUnknown ignores events the session has no view for.
func (s *Session) HandleUnknown(connection.Event) {}

// DismissToast clears the active toast. It reports whether one was shown.
func (s *Session) DismissToast() bool {
	s.mu.Lock()
	if s.toast == nil {
		s.mu.Unlock()
		return false
	}
	s.clearToastLocked()
	s.mu.Unlock()
	s.changed()
	return true
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Toast returns the active toast, if any.
func (s *Session) Toast() (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toast == nil {
		return model.Notification{}, false
	}
	return *s.toast, true
}

// Status returns the latest status line, if any.
func (s *Session) Status() (model.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return model.Status{}, false
	}
	return *s.status, true
}

// Close cancels the toast timer.
func (s *Session) Close() {
	s.mu.Lock()
	if s.toastTimer != nil {
		s.toastTimer.Stop()
		s.toastTimer = nil
	}
	s.mu.Unlock()
}

func (s *Session) expireToast(gen uint64) {
	s.mu.Lock()
	if gen != s.toastGen || s.toast == nil {
		s.mu.Unlock()
		return
	}
	s.clearToastLocked()
	s.mu.Unlock()
	s.changed()
}

func (s *Session) clearToastLocked() {
	if s.toastTimer != nil {
		s.toastTimer.Stop()
		s.toastTimer = nil
	}
	s.toastGen++
	s.toast = nil
}

func (s *Session) forgetEchoLocked(text string) bool {
	n, ok := s.echoes[text]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(s.echoes, text)
	} else {
		s.echoes[text] = n - 1
	}
	return true
}

func (s *Session) changed() {
	s.mu.Lock()
	fns := s.onChange
	s.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) connection.Timer {
	return time.AfterFunc(d, f)
}
