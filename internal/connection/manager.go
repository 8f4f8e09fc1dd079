package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rickgao/remindchat/internal/metrics"
)

// Manager keeps one realtime connection alive, reconnecting with exponential
// backoff, and hands parsed inbound events to a single EventHandler.
//
// All transitions are serialized under mu. Each transport and each reconnect
// timer carries a generation number; notifications from a detached generation
// are dropped.
type Manager struct {
	cfg     Config
	handler EventHandler
	dialer  Dialer
	clock   Clock
	logger  *slog.Logger
	onState func(State)

	mu        sync.Mutex
	state     State
	attempts  int
	transport Transport
	gen       uint64
	opened    bool // current transport reported open
	timer     Timer
	timerGen  uint64
	stopped   bool
	lastErr   error

	// pending state notifications, drained by one goroutine at a time
	pending    []State
	delivering bool

	// held for the duration of every handler invocation
	dispatchMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithClock replaces the clock used for reconnect timers.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithStateHandler registers a callback invoked after every state transition.
//
// Notifications are delivered in transition order and never concurrently.
// The callback may call back into the Manager.
func WithStateHandler(fn func(State)) Option {
	return func(m *Manager) {
		m.onState = fn
	}
}

// NewManager creates a manager in the Closed state. Nothing is dialed until
// Start is called.
func NewManager(cfg Config, handler EventHandler, opts ...Option) *Manager {
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	m := &Manager{
		cfg:     cfg,
		handler: handler,
		clock:   realClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewWSDialer(DefaultDialerConfig(), m.logger)
	}
	return m
}

// Start begins a connect cycle unless one is already connecting or open.
// It never blocks on the network. After exhaustion it resets the attempt
// counter and starts over.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return nil
	}

	m.cancelTimerLocked()
	m.attempts = 0
	m.lastErr = nil
	old := m.detachLocked()
	m.connectLocked()
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	m.flushState()
	return nil
}

// Send writes payload verbatim. It fails with ErrNotConnected unless the
// connection is open; nothing is queued.
func (m *Manager) Send(payload string) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		metrics.IncWSSendFailure(context.Background(), "stopped")
		return ErrStopped
	}
	if m.state != StateOpen || m.transport == nil {
		state := m.state
		m.mu.Unlock()
		metrics.IncWSSendFailure(context.Background(), "not_connected")
		m.logger.Debug("send dropped", "state", state)
		return ErrNotConnected
	}
	t := m.transport
	m.mu.Unlock()

	if err := t.Send([]byte(payload)); err != nil {
		metrics.IncWSSendFailure(context.Background(), "write")
		return fmt.Errorf("send: %w", err)
	}
	metrics.IncWSMessage(context.Background(), "out", "raw")
	return nil
}

// Stop tears the connection down for good. It cancels any pending reconnect,
// detaches the current transport and closes it. Once Stop returns the
// handler will not be invoked again.
//
// Stop waits for an in-flight handler invocation to finish, so it must not
// be called synchronously from the EventHandler.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.cancelTimerLocked()
	t := m.detachLocked()
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			m.logger.Debug("close transport", "error", err)
		}
	}

	// Barrier: a dispatch that began before stopped was set finishes here;
	// any later one sees stopped and returns.
	m.dispatchMu.Lock()
	m.dispatchMu.Unlock()

	m.flushState()
	m.logger.Info("connection manager stopped", "url", m.cfg.URL)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Err returns the most recent connection error, or nil. After exhaustion it
// wraps ErrReconnectExhausted.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// --- transport notifications ---

func (m *Manager) handleOpen(gen uint64) {
	m.mu.Lock()
	if !m.liveLocked(gen) {
		m.mu.Unlock()
		return
	}
	m.opened = true
	m.attempts = 0
	m.lastErr = nil
	m.cancelTimerLocked()
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	metrics.IncWSConnectAttempt(context.Background(), "success")
	m.logger.Info("connected", "url", m.cfg.URL)
	m.flushState()
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	live := m.liveLocked(gen)
	m.mu.Unlock()
	if !live {
		return
	}

	ev, err := ParseEvent(data, time.Now())
	if err != nil {
		metrics.IncWSParseError(context.Background())
		m.logger.Warn("dropping malformed event",
			"error", err,
			"size", len(data),
		)
		return
	}

	metrics.IncWSMessage(context.Background(), "in", metricType(ev.Type))
	if m.handler != nil {
		m.handler.HandleEvent(ev)
	}
}

func (m *Manager) handleError(gen uint64, err error) {
	m.mu.Lock()
	if !m.liveLocked(gen) {
		m.mu.Unlock()
		return
	}
	m.lastErr = err
	m.setStateLocked(StateErrored)
	t := m.transport
	m.mu.Unlock()

	m.logger.Warn("connection error", "url", m.cfg.URL, "error", err)
	m.flushState()

	// The transport stays attached so its close runs the reconnect logic.
	if t != nil {
		t.Close()
	}
}

func (m *Manager) handleClose(gen uint64, code int, reason string) {
	m.mu.Lock()
	if !m.liveLocked(gen) {
		m.mu.Unlock()
		return
	}

	opened := m.opened
	m.detachLocked()
	m.setStateLocked(StateClosed)

	var (
		delay     time.Duration
		scheduled bool
	)
	if m.attempts < m.cfg.MaxAttempts {
		delay = m.backoffDelay(m.attempts)
		m.attempts++
		m.scheduleLocked(delay)
		scheduled = true
	} else {
		m.exhaustLocked()
	}
	attempts := m.attempts
	m.mu.Unlock()

	if !opened {
		metrics.IncWSConnectAttempt(context.Background(), "failure")
	}

	if scheduled {
		metrics.IncWSReconnect(context.Background())
		m.logger.Info("connection closed, reconnecting",
			"code", code,
			"reason", reason,
			"attempt", attempts,
			"max_attempts", m.cfg.MaxAttempts,
			"delay", delay,
		)
	} else {
		m.logger.Error("connection closed, giving up",
			"code", code,
			"reason", reason,
			"max_attempts", m.cfg.MaxAttempts,
		)
	}
	m.flushState()
}

func (m *Manager) handleTimer(timerGen uint64) {
	m.mu.Lock()
	if m.stopped || timerGen != m.timerGen || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil

	// The last scheduled delay ends the cycle instead of dialing again.
	if m.attempts >= m.cfg.MaxAttempts {
		m.exhaustLocked()
		m.mu.Unlock()
		m.logger.Error("reconnect attempts exhausted",
			"url", m.cfg.URL,
			"max_attempts", m.cfg.MaxAttempts,
		)
		m.flushState()
		return
	}

	m.connectLocked()
	m.mu.Unlock()

	m.flushState()
}

// --- internals (callers hold mu unless noted) ---

func (m *Manager) liveLocked(gen uint64) bool {
	return !m.stopped && gen == m.gen && m.transport != nil
}

// connectLocked opens a fresh transport and moves to Connecting.
func (m *Manager) connectLocked() {
	m.gen++
	m.opened = false
	m.setStateLocked(StateConnecting)
	m.transport = m.dialer.Open(m.cfg.URL, listener{m: m, gen: m.gen})
	m.logger.Debug("connecting", "url", m.cfg.URL, "attempt", m.attempts)
}

// detachLocked forgets the current transport so its remaining notifications
// are ignored. The caller closes the returned transport after unlocking.
// exhaustLocked records ErrReconnectExhausted and moves to Errored.
func (m *Manager) exhaustLocked() {
	if m.lastErr != nil && !errors.Is(m.lastErr, ErrReconnectExhausted) {
		m.lastErr = fmt.Errorf("%w: %w", ErrReconnectExhausted, m.lastErr)
	} else {
		m.lastErr = ErrReconnectExhausted
	}
	m.setStateLocked(StateErrored)
}

func (m *Manager) detachLocked() Transport {
	t := m.transport
	m.transport = nil
	m.gen++
	return t
}

func (m *Manager) scheduleLocked(delay time.Duration) {
	m.cancelTimerLocked()
	tg := m.timerGen
	m.timer = m.clock.AfterFunc(delay, func() {
		m.handleTimer(tg)
	})
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

// backoffDelay returns BaseDelay * 2^n, capped at MaxDelay when set.
func (m *Manager) backoffDelay(n int) time.Duration {
	d := float64(m.cfg.BaseDelay) * math.Pow(2, float64(n))
	delay := time.Duration(math.MaxInt64)
	if d < float64(math.MaxInt64) {
		delay = time.Duration(d)
	}
	if m.cfg.MaxDelay > 0 && delay > m.cfg.MaxDelay {
		delay = m.cfg.MaxDelay
	}
	return delay
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	metrics.SetWSState(int64(s))
	if m.onState != nil {
		m.pending = append(m.pending, s)
	}
}

// flushState delivers queued state notifications. Must be called without mu.
// A call made while another goroutine (or an outer frame of this one) is
// delivering returns at once; the active deliverer drains the queue.
func (m *Manager) flushState() {
	for {
		m.mu.Lock()
		if m.delivering || len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		s := m.pending[0]
		m.pending = m.pending[1:]
		m.delivering = true
		m.mu.Unlock()

		m.onState(s)

		m.mu.Lock()
		m.delivering = false
		m.mu.Unlock()
	}
}

// listener binds transport notifications to one generation.
type listener struct {
	m   *Manager
	gen uint64
}

func (l listener) OnOpen()                         { l.m.handleOpen(l.gen) }
func (l listener) OnMessage(data []byte)           { l.m.handleMessage(l.gen, data) }
func (l listener) OnError(err error)               { l.m.handleError(l.gen, err) }
func (l listener) OnClose(code int, reason string) { l.m.handleClose(l.gen, code, reason) }
