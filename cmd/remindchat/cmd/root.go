package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/remindchat/internal/config"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "remindchat",
	Short: "Chat with the reminder assistant",
	Long: `remindchat is a terminal client for the reminder assistant.

It keeps a realtime chat connection to the service, shows reminder
notifications as they fire, and manages saved reminders over the REST API.

Configuration is read from a YAML or TOML file (--config). Without a file
the built-in defaults are used.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("REMINDCHAT_CONFIG"), "path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// loadConfig loads and validates the config named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds a text logger writing to w at the --log-level level.
func setupLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(logLevel))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}
