package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/remindchat/internal/archive"
	"github.com/rickgao/remindchat/internal/chat"
	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/database"
	"github.com/rickgao/remindchat/internal/metrics"
	"github.com/rickgao/remindchat/internal/router"
	"github.com/rickgao/remindchat/internal/version"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive chat with the reminder assistant",
	Long: `Open an interactive chat with the reminder assistant.

Messages are sent over the realtime connection. Reminder notifications
appear in the prompt and clear after notifications.dismiss_after. If the
connection drops it is retried with exponential backoff; once the retries
are used up, /reconnect starts over.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptIdle,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    200,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	closeInput := sync.OnceFunc(func() { rl.Close() })
	defer closeInput()

	// Logs go through readline so they do not corrupt the prompt.
	logger, err := setupLogger(rl.Stderr())
	if err != nil {
		return err
	}
	out := rl.Stdout()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	info := version.Resolve()
	logger.Info("starting remindchat",
		"version", info.Version,
		"commit", info.Commit,
		"ws_url", cfg.API.WSURL,
	)

	telemetry, err := metrics.Init(ctx, metrics.Config{
		Enabled:      cfg.Metrics.Enabled,
		Addr:         cfg.Metrics.Addr,
		Path:         cfg.Metrics.Path,
		BuildVersion: info.Version,
		BuildCommit:  info.Commit,
	})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	rt := router.NewRouter(routerConfig(cfg), logger)

	var (
		pool   *pgxpool.Pool
		writer *archive.Writer
	)
	if cfg.Archive.Enabled {
		logger.Info("connecting to archive database",
			"host", cfg.Archive.Database.Host,
			"port", cfg.Archive.Database.Port,
			"database", cfg.Archive.Database.Name,
		)
		if pool, err = database.Connect(ctx, cfg.Archive.Database); err != nil {
			return fmt.Errorf("connect archive database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		writer = archive.NewWriter(archive.Config{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval.Std(),
		}, rt.Buffers(), pool, logger)
		if err := writer.Start(ctx); err != nil {
			return err
		}
	}

	mgr := connection.NewManager(managerConfig(cfg), rt,
		connection.WithLogger(logger),
		connection.WithDialer(connection.NewWSDialer(dialerConfig(cfg), logger)),
		connection.WithStateHandler(func(s connection.State) {
			fmt.Fprintf(out, "-- %s --\n", strings.ToLower(s.String()))
		}),
	)

	sess := chat.NewSession(chat.Config{DismissAfter: cfg.Notifications.DismissAfter.Std()}, mgr, chat.WithLogger(logger))
	defer sess.Close()
	sess.OnChange(func() {
		rl.SetPrompt(prompt(sess))
		rl.Refresh()
	})
	rt.AddSink(sess)
	rt.AddSink(&console{out: out})

	if cfg.Metrics.Enabled {
		var db pinger
		if pool != nil {
			db = pool
		}
		telemetry.Serve(cfg.Metrics.Addr, healthHandler(mgr, rt, db), logger)
	}

	repl := &chatREPL{
		out:       out,
		sess:      sess,
		conn:      mgr,
		stats:     rt,
		reminders: newAPIClient(cfg, logger),
	}
	repl.printHelp()
	for _, m := range sess.Messages() {
		fmt.Fprintf(out, "bot> %s\n", m.Text)
	}

	if err := mgr.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)
	g.Go(func() error {
		defer stopLoop()
		return repl.run(loopCtx, rl)
	})
	g.Go(func() error {
		// Unblock Readline on signal or /quit.
		<-loopCtx.Done()
		closeInput()
		return nil
	})
	err = g.Wait()

	logger.Info("shutting down...")
	mgr.Stop()

	if writer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := writer.Stop(stopCtx); err != nil {
			logger.Warn("archive writer stop failed", "error", err)
		}
		stats := writer.Stats()
		logger.Info("archive flushed",
			"chat_rows", stats.Chat.Inserts,
			"notification_rows", stats.Notifications.Inserts,
		)
	}
	rt.Close()

	return err
}
