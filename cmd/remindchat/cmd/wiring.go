package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/remindchat/internal/api"
	"github.com/rickgao/remindchat/internal/config"
	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/router"
	"github.com/rickgao/remindchat/internal/version"
)

func newAPIClient(cfg *config.Config, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithUserAgent("remindchat/"+version.Resolve().Version),
		api.WithTimeout(cfg.API.Timeout.Std()),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff.Std()),
	)
}

func managerConfig(cfg *config.Config) connection.Config {
	mc := connection.DefaultConfig()
	mc.URL = cfg.API.WSURL
	if cfg.Connection.MaxAttempts != nil {
		mc.MaxAttempts = *cfg.Connection.MaxAttempts
	}
	mc.BaseDelay = cfg.Connection.BaseDelay.Std()
	mc.MaxDelay = cfg.Connection.MaxDelay.Std()
	return mc
}

func dialerConfig(cfg *config.Config) connection.DialerConfig {
	dc := connection.DefaultDialerConfig()
	dc.APIKey = cfg.API.APIKey
	dc.HandshakeTimeout = cfg.Connection.HandshakeTimeout.Std()
	dc.WriteTimeout = cfg.Connection.WriteTimeout.Std()
	dc.PingInterval = cfg.Connection.PingInterval.Std()
	dc.PingTimeout = cfg.Connection.PingTimeout.Std()
	return dc
}

// routerConfig sizes the archive queues. Without an archive nothing drains
// them, so they are disabled.
func routerConfig(cfg *config.Config) router.RouterConfig {
	if !cfg.Archive.Enabled {
		return router.RouterConfig{}
	}
	rc := router.DefaultRouterConfig()
	rc.ChatBufferSize = cfg.Archive.BufferSize
	rc.NotificationBufferSize = cfg.Archive.BufferSize
	return rc
}

// pinger reports database reachability for the health endpoint.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports connection and archive health.
func healthHandler(mgr *connection.Manager, rt *router.Router, db pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		state := mgr.State()
		conn := map[string]any{
			"state":    state.String(),
			"attempts": mgr.Attempts(),
		}
		if err := mgr.Err(); err != nil {
			conn["error"] = err.Error()
		}
		health.Components["websocket"] = conn
		switch state {
		case connection.StateErrored, connection.StateClosed:
			health.Status = "unhealthy"
		case connection.StateConnecting:
			health.Status = "degraded"
		}

		stats := rt.Stats()
		health.Components["router"] = map[string]any{
			"events":        stats.EventsReceived,
			"chat":          stats.Chat,
			"notifications": stats.Notifications,
			"unknown":       stats.UnknownMessages,
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["archive"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["archive"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
