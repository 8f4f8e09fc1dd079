package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL          = "http://localhost:8000"
	DefaultWSURL            = "ws://localhost:8000/ws"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 1 * time.Second
	DefaultMaxAttempts      = 5
	DefaultBaseDelay        = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPingTimeout      = 90 * time.Second
	DefaultDismissAfter     = 5 * time.Second
	DefaultPollInterval     = 30 * time.Second
	DefaultPollTimeout      = 10 * time.Second
	DefaultBatchSize        = 100
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 256
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultMetricsAddr      = ":9090"
	DefaultMetricsPath      = "/metrics"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(DefaultAPITimeout)
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = Duration(DefaultRetryBackoff)
	}

	// Connection defaults
	if c.Connection.MaxAttempts == nil {
		n := DefaultMaxAttempts
		c.Connection.MaxAttempts = &n
	}
	if c.Connection.BaseDelay == 0 {
		c.Connection.BaseDelay = Duration(DefaultBaseDelay)
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = Duration(DefaultHandshakeTimeout)
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = Duration(DefaultPingInterval)
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = Duration(DefaultPingTimeout)
	}

	if c.Notifications.DismissAfter == 0 {
		c.Notifications.DismissAfter = Duration(DefaultDismissAfter)
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = Duration(DefaultPollInterval)
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = Duration(DefaultPollTimeout)
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = Duration(DefaultFlushInterval)
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Archive.Database)

	// Metrics defaults
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
