package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/rickgao/remindchat/internal/api"
	"github.com/rickgao/remindchat/internal/chat"
	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/model"
	"github.com/rickgao/remindchat/internal/reminder"
	"github.com/rickgao/remindchat/internal/router"
)

const promptIdle = "you> "

// console prints inbound events above the prompt.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

var _ router.Sink = (*console)(nil)

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) HandleChat(m model.ChatMessage) {
	if m.IsBot() {
		c.printf("bot> %s\n", m.Text)
	}
}

func (c *console) HandleNotification(n model.Notification) {
	c.printf("*** Reminder! %s ***\n", n.Task)
}

func (c *console) HandleStatus(st model.Status) {
	if st.IsError() {
		c.printf("error: %s\n", st.Message)
		return
	}
	c.printf("ok: %s\n", st.Message)
}

func (c *console) HandleUnknown(connection.Event) {}

// prompt shows the active reminder toast in front of the input prompt.
func prompt(sess *chat.Session) string {
	if n, ok := sess.Toast(); ok {
		return fmt.Sprintf("[reminder: %s] %s", n.Task, promptIdle)
	}
	return promptIdle
}

// connControl is the part of the connection manager the REPL drives.
type connControl interface {
	Start() error
	State() connection.State
	Attempts() int
	Err() error
}

type statsSource interface {
	Stats() router.RouterStats
}

type reminderLister interface {
	GetReminders(ctx context.Context) ([]api.Reminder, error)
}

type lineReader interface {
	Readline() (string, error)
}

// chatREPL runs the interactive loop: plain lines are chat messages and
// lines starting with "/" are commands.
type chatREPL struct {
	out       io.Writer
	sess      *chat.Session
	conn      connControl
	stats     statsSource
	reminders reminderLister
	loc       *time.Location
}

func (r *chatREPL) run(ctx context.Context, in lineReader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && line != "" {
				continue
			}
			// EOF, Ctrl-C on an empty line, or the reader was closed
			return nil
		}

		if r.handleLine(ctx, line) {
			return nil
		}
	}
}

// handleLine processes one input line and reports whether to quit.
func (r *chatREPL) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(line)
		return false
	}

	fields := strings.Fields(line)
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		r.printHelp()
	case "/dismiss":
		if !r.sess.DismissToast() {
			fmt.Fprintln(r.out, "No active reminder.")
		}
	case "/status":
		r.printStatus()
	case "/history":
		r.printHistory()
	case "/reconnect":
		if err := r.conn.Start(); err != nil {
			fmt.Fprintf(r.out, "reconnect: %v\n", err)
		}
	case "/reminders":
		r.listReminders(ctx, args)
	default:
		fmt.Fprintf(r.out, "Unknown command %s (try /help)\n", fields[0])
	}
	return false
}

func (r *chatREPL) send(text string) {
	err := r.sess.Send(text)
	switch {
	case err == nil:
	case errors.Is(err, connection.ErrNotConnected):
		fmt.Fprintf(r.out, "Not connected (%s); message not sent. Use /reconnect to retry.\n", r.conn.State())
	case errors.Is(err, connection.ErrStopped):
		fmt.Fprintln(r.out, "Connection closed; message not sent.")
	default:
		fmt.Fprintf(r.out, "send failed: %v\n", err)
	}
}

func (r *chatREPL) printHelp() {
	fmt.Fprint(r.out, `Type a message to chat. Commands:
  /reminders [all|pending|completed]  list saved reminders (default pending)
  /dismiss                            dismiss the active reminder
  /status                             show connection status
  /history                            show the conversation so far
  /reconnect                          reconnect after the connection gave up
  /quit                               exit
`)
}

func (r *chatREPL) printStatus() {
	fmt.Fprintf(r.out, "connection: %s (reconnect attempts: %d)\n", r.conn.State(), r.conn.Attempts())
	if err := r.conn.Err(); err != nil {
		fmt.Fprintf(r.out, "last error: %v\n", err)
	}
	if st, ok := r.sess.Status(); ok {
		fmt.Fprintf(r.out, "last %s: %s\n", st.Kind, st.Message)
	}
	if n, ok := r.sess.Toast(); ok {
		fmt.Fprintf(r.out, "active reminder: %s\n", n.Task)
	}
	if r.stats != nil {
		s := r.stats.Stats()
		fmt.Fprintf(r.out, "events: %d (chat %d, notifications %d, unknown %d)\n",
			s.EventsReceived, s.Chat, s.Notifications, s.UnknownMessages)
	}
}

func (r *chatREPL) printHistory() {
	for _, m := range r.sess.Messages() {
		fmt.Fprintf(r.out, "%s %s> %s\n", m.Timestamp.In(r.location()).Format(time.Kitchen), m.Sender, m.Text)
	}
}

func (r *chatREPL) listReminders(ctx context.Context, args []string) {
	status := reminder.StatusPending
	if len(args) > 0 {
		var err error
		if status, err = reminder.ParseStatus(args[0]); err != nil {
			fmt.Fprintln(r.out, err)
			return
		}
	}

	all, err := r.reminders.GetReminders(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "Failed to load reminders: %v\n", err)
		return
	}

	view := reminder.Filter(all, status)
	reminder.Sort(view, reminder.SortTimeAsc)
	printReminders(r.out, view, r.location())
}

func (r *chatREPL) location() *time.Location {
	if r.loc != nil {
		return r.loc
	}
	return time.Local
}
