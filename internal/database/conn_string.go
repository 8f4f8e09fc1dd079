package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/remindchat/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode credentials to handle special characters
	user := url.QueryEscape(cfg.User)
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&application_name=remindchat",
		user,
		escapedPassword,
		cfg.Host,
		port,
		url.PathEscape(cfg.Name),
		sslMode,
	)
}
