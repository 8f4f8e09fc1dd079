package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss", "http", "https"); err != nil {
		return err
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Connection.MaxAttempts != nil && *c.Connection.MaxAttempts < 0 {
		return fmt.Errorf("connection.max_attempts must be >= 0, got %d", *c.Connection.MaxAttempts)
	}
	if c.Connection.BaseDelay <= 0 {
		return errors.New("connection.base_delay must be > 0")
	}
	if c.Connection.MaxDelay < 0 {
		return errors.New("connection.max_delay must be >= 0")
	}
	if c.Connection.MaxDelay > 0 && c.Connection.MaxDelay < c.Connection.BaseDelay {
		return fmt.Errorf("connection.max_delay (%s) cannot be less than base_delay (%s)", c.Connection.MaxDelay, c.Connection.BaseDelay)
	}
	if c.Connection.PingInterval > 0 && c.Connection.PingTimeout <= c.Connection.PingInterval {
		return fmt.Errorf("connection.ping_timeout (%s) must exceed ping_interval (%s)", c.Connection.PingTimeout, c.Connection.PingInterval)
	}

	if c.Notifications.DismissAfter < 0 {
		return errors.New("notifications.dismiss_after must be >= 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if c.Archive.Enabled {
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return errors.New("metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s must include a host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %s, got %q", field, strings.Join(schemes, ", "), u.Scheme)
}
