package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rickgao/remindchat/internal/config"
	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/router"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}
	return cfg
}

func TestManagerConfig(t *testing.T) {
	cfg := defaultConfig(t)

	mc := managerConfig(cfg)
	if mc.URL != config.DefaultWSURL {
		t.Errorf("URL = %q, want %q", mc.URL, config.DefaultWSURL)
	}
	if mc.MaxAttempts != 5 || mc.BaseDelay != 3*time.Second || mc.MaxDelay != 0 {
		t.Errorf("reconnect policy = %+v, want 5 attempts from 3s uncapped", mc)
	}

	zero := 0
	cfg.Connection.MaxAttempts = &zero
	cfg.Connection.MaxDelay = config.Duration(time.Minute)
	mc = managerConfig(cfg)
	if mc.MaxAttempts != 0 || mc.MaxDelay != time.Minute {
		t.Errorf("overrides lost: %+v", mc)
	}
}

func TestDialerConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.API.APIKey = "secret"

	dc := dialerConfig(cfg)
	if dc.APIKey != "secret" {
		t.Errorf("APIKey = %q", dc.APIKey)
	}
	if dc.PingInterval != config.DefaultPingInterval || dc.PingTimeout != config.DefaultPingTimeout {
		t.Errorf("heartbeat = %v/%v", dc.PingInterval, dc.PingTimeout)
	}
	if dc.HandshakeTimeout != config.DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v", dc.HandshakeTimeout)
	}
}

func TestRouterConfig(t *testing.T) {
	cfg := defaultConfig(t)

	if rc := routerConfig(cfg); rc.ChatBufferSize != 0 || rc.NotificationBufferSize != 0 {
		t.Errorf("archive disabled but queues sized: %+v", rc)
	}

	cfg.Archive.Enabled = true
	cfg.Archive.BufferSize = 32
	rc := routerConfig(cfg)
	if rc.ChatBufferSize != 32 || rc.NotificationBufferSize != 32 {
		t.Errorf("queues = %+v, want 32", rc)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	mgr := connection.NewManager(connection.Config{URL: "ws://127.0.0.1:1/ws", BaseDelay: time.Second}, nil)
	rt := router.NewRouter(router.RouterConfig{}, nil)

	tests := []struct {
		name       string
		db         pinger
		wantStatus string
		wantCode   int
	}{
		{"closed connection", nil, "unhealthy", http.StatusServiceUnavailable},
		{"archive down", fakePinger{err: errors.New("refused")}, "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(mgr, rt, tt.db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status     string                     `json:"status"`
				Components map[string]json.RawMessage `json:"components"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if _, ok := body.Components["websocket"]; !ok {
				t.Error("missing websocket component")
			}
			if _, ok := body.Components["archive"]; ok != (tt.db != nil) {
				t.Errorf("archive component present = %v", ok)
			}
		})
	}
}
