package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/remindchat/internal/api"
)

// Source fetches the reminder list. *api.Client satisfies it.
type Source interface {
	GetReminders(ctx context.Context) ([]api.Reminder, error)
}

// Handler receives each fetched reminder list.
type Handler interface {
	HandleReminders(reminders []api.Reminder) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func([]api.Reminder) error

func (f HandlerFunc) HandleReminders(r []api.Reminder) error {
	return f(r)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats reports poll outcomes.
type Stats struct {
	Polls    int64
	Failures int64
	LastSize int
	LastPoll time.Time
}

// Poller periodically refreshes the reminder list.
type Poller struct {
	cfg     Config
	source  Source
	handler Handler
	logger  *slog.Logger

	polls    atomic.Int64
	failures atomic.Int64
	statsMu  sync.Mutex
	lastSize int
	lastPoll time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source Source, handler Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger.With("component", "poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("reminder poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop shuts the poller down, waiting for an in-flight poll.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("reminder poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return Stats{
		Polls:    p.polls.Load(),
		Failures: p.failures.Load(),
		LastSize: p.lastSize,
		LastPoll: p.lastPoll,
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	start := time.Now()
	p.polls.Add(1)

	n, err := p.fetch()
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.failures.Add(1)
		p.logger.Warn("failed to refresh reminders", "err", err)
		return
	}

	p.statsMu.Lock()
	p.lastSize = n
	p.lastPoll = start
	p.statsMu.Unlock()

	p.logger.Debug("poll cycle complete",
		"reminders", n,
		"duration", time.Since(start),
	)
}

func (p *Poller) fetch() (int, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	reminders, err := p.source.GetReminders(ctx)
	if err != nil {
		return 0, err
	}

	if p.handler != nil {
		if err := p.handler.HandleReminders(reminders); err != nil {
			return 0, err
		}
	}
	return len(reminders), nil
}
