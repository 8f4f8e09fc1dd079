// Package config loads remindchat configuration from YAML or TOML files.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level remindchat configuration.
type Config struct {
	API           APIConfig           `yaml:"api" toml:"api"`
	Connection    ConnectionConfig    `yaml:"connection" toml:"connection"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Poller        PollerConfig        `yaml:"poller" toml:"poller"`
	Archive       ArchiveConfig       `yaml:"archive" toml:"archive"`
	Metrics       MetricsConfig       `yaml:"metrics" toml:"metrics"`
}

// APIConfig holds the reminder service endpoints.
type APIConfig struct {
	RestURL      string   `yaml:"rest_url" toml:"rest_url"`
	WSURL        string   `yaml:"ws_url" toml:"ws_url"`
	APIKey       string   `yaml:"api_key" toml:"api_key"`
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
	MaxRetries   int      `yaml:"max_retries" toml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff" toml:"retry_backoff"`
}

// ConnectionConfig holds the realtime connection policy.
type ConnectionConfig struct {
	// MaxAttempts is a pointer so an explicit 0 (never reconnect) survives
	// default filling.
	MaxAttempts      *int     `yaml:"max_attempts" toml:"max_attempts"`
	BaseDelay        Duration `yaml:"base_delay" toml:"base_delay"`
	MaxDelay         Duration `yaml:"max_delay" toml:"max_delay"`
	HandshakeTimeout Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeout     Duration `yaml:"write_timeout" toml:"write_timeout"`
	PingInterval     Duration `yaml:"ping_interval" toml:"ping_interval"`
	PingTimeout      Duration `yaml:"ping_timeout" toml:"ping_timeout"`
}

// NotificationsConfig holds reminder toast settings.
type NotificationsConfig struct {
	DismissAfter Duration `yaml:"dismiss_after" toml:"dismiss_after"`
}

// PollerConfig holds the reminder refresher settings.
type PollerConfig struct {
	Interval Duration `yaml:"interval" toml:"interval"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
}

// ArchiveConfig holds the optional Postgres chat archive.
type ArchiveConfig struct {
	Enabled       bool     `yaml:"enabled" toml:"enabled"`
	BatchSize     int      `yaml:"batch_size" toml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval" toml:"flush_interval"`
	BufferSize    int      `yaml:"buffer_size" toml:"buffer_size"`
	Database      DBConfig `yaml:"database" toml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
	MinConns int    `yaml:"min_conns" toml:"min_conns"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// Duration is a time.Duration written as a Go duration string ("5s", "1m30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a Go duration string. TOML decoding uses it.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML parses a scalar duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}
