package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a single realtime socket.
//
// Implementations must never invoke their Listener from inside Send or
// Close; notifications arrive on the transport's own goroutine.
type Transport interface {
	// Send writes one text frame.
	Send(data []byte) error

	// Close terminates the socket. A close notification follows.
	Close() error
}

// Listener receives the notifications of one Transport, in order: at most
// one OnOpen, zero or more OnMessage, optionally OnError, then exactly one
// OnClose.
type Listener interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose(code int, reason string)
}

// Dialer opens transports. Open returns immediately and must not call the
// listener before returning; the outcome of the connection attempt is
// reported through the listener.
type Dialer interface {
	Open(url string, l Listener) Transport
}

// WSDialer opens gorilla WebSocket transports.
type WSDialer struct {
	cfg    DialerConfig
	logger *slog.Logger
}

// NewWSDialer creates a new WebSocket dialer.
func NewWSDialer(cfg DialerConfig, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{cfg: cfg, logger: logger}
}

// Open starts connecting to url in the background.
func (d *WSDialer) Open(url string, l Listener) Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		cfg:      d.cfg,
		logger:   d.logger,
		listener: l,
		ctx:      ctx,
		cancel:   cancel,
	}
	go t.run(toWebSocketURL(url))
	return t
}

// wsTransport implements Transport over a gorilla connection.
type wsTransport struct {
	cfg      DialerConfig
	logger   *slog.Logger
	listener Listener

	// Cancelled by Close: aborts an in-flight dial and stops the heartbeat.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu         sync.Mutex
	conn       *websocket.Conn
	closed     bool
	stale      bool
	lastPongAt time.Time
}

// Send writes a text frame.
func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()

	if closed {
		return ErrAlreadyClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears the socket down.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	t.cancel()

	if conn == nil {
		return nil
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// run dials, then reads until the socket dies. It is the only goroutine that
// calls the listener.
func (t *wsTransport) run(url string) {
	header := http.Header{}
	for k, v := range t.cfg.Header {
		header[k] = v
	}
	if t.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(t.ctx, url, header)
	if err != nil {
		if t.isClosed() {
			t.listener.OnClose(CloseNormal, "closed before open")
			return
		}
		t.listener.OnError(fmt.Errorf("dial %s: %w", url, err))
		t.listener.OnClose(CloseAbnormal, err.Error())
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		t.listener.OnClose(CloseNormal, "closed before open")
		return
	}
	t.conn = conn
	t.lastPongAt = time.Now()
	t.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	t.logger.Debug("websocket connected", "url", url)
	t.listener.OnOpen()

	if t.cfg.PingInterval > 0 {
		go t.heartbeatLoop(conn)
	}

	t.readLoop(conn)
}

// readLoop forwards frames until the connection fails or is closed.
func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			t.listener.OnMessage(data)
			continue
		}

		t.mu.Lock()
		closed, stale := t.closed, t.stale
		t.mu.Unlock()

		if stale {
			t.listener.OnError(ErrStaleConnection)
		}

		var ce *websocket.CloseError
		switch {
		case errors.As(err, &ce):
			t.listener.OnClose(ce.Code, ce.Text)
		case closed:
			t.listener.OnClose(CloseNormal, "")
		default:
			t.listener.OnClose(CloseAbnormal, err.Error())
		}

		conn.Close()
		return
	}
}

// heartbeatLoop pings the server and kills the socket when pongs stop.
func (t *wsTransport) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.Lock()
			last := t.lastPongAt
			t.mu.Unlock()

			if t.cfg.PingTimeout > 0 && time.Since(last) > t.cfg.PingTimeout {
				t.logger.Warn("no pong received, connection stale",
					"last_pong", last,
					"timeout", t.cfg.PingTimeout,
				)
				t.mu.Lock()
				t.stale = true
				t.mu.Unlock()
				// Unblocks readLoop, which reports the error and the close.
				conn.Close()
				return
			}
		}
	}
}

func (t *wsTransport) touch() {
	t.mu.Lock()
	t.lastPongAt = time.Now()
	t.mu.Unlock()
}

func (t *wsTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// toWebSocketURL rewrites http(s) endpoints to ws(s).
func toWebSocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}
