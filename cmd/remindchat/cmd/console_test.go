package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chzyer/readline"

	"github.com/rickgao/remindchat/internal/api"
	"github.com/rickgao/remindchat/internal/chat"
	"github.com/rickgao/remindchat/internal/connection"
	"github.com/rickgao/remindchat/internal/model"
	"github.com/rickgao/remindchat/internal/reminder"
	"github.com/rickgao/remindchat/internal/router"
)

type fakeConn struct {
	state   connection.State
	sendErr error
	starts  int
	sent    []string
}

func (c *fakeConn) Start() error {
	c.starts++
	return nil
}

func (c *fakeConn) State() connection.State { return c.state }
func (c *fakeConn) Attempts() int           { return 2 }
func (c *fakeConn) Err() error              { return nil }

func (c *fakeConn) Send(payload string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

type fakeLister struct {
	reminders []api.Reminder
	err       error
}

func (l fakeLister) GetReminders(context.Context) ([]api.Reminder, error) {
	return l.reminders, l.err
}

type scriptedReader struct {
	lines []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func newREPL(conn *fakeConn, lister fakeLister) (*chatREPL, *bytes.Buffer) {
	var out bytes.Buffer
	sess := chat.NewSession(chat.DefaultConfig(), conn)
	return &chatREPL{
		out:       &out,
		sess:      sess,
		conn:      conn,
		stats:     router.NewRouter(router.RouterConfig{}, nil),
		reminders: lister,
		loc:       time.UTC,
	}, &out
}

func TestREPL_SendsPlainLines(t *testing.T) {
	conn := &fakeConn{state: connection.StateOpen}
	repl, out := newREPL(conn, fakeLister{})

	if repl.handleLine(context.Background(), "  remind me to post for OT  ") {
		t.Fatal("plain line should not quit")
	}
	if len(conn.sent) != 1 || conn.sent[0] != "remind me to post for OT" {
		t.Errorf("sent = %v", conn.sent)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestREPL_SendNotConnected(t *testing.T) {
	conn := &fakeConn{state: connection.StateErrored, sendErr: connection.ErrNotConnected}
	repl, out := newREPL(conn, fakeLister{})

	repl.handleLine(context.Background(), "hello")

	if !strings.Contains(out.String(), "Not connected (ERROR)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPL_Commands(t *testing.T) {
	conn := &fakeConn{state: connection.StateOpen}
	lister := fakeLister{reminders: []api.Reminder{
		{ID: "a", Task: "Send Hb", ReminderTime: time.Date(2024, 7, 9, 16, 0, 0, 0, time.UTC)},
		{ID: "b", Task: "Check sugars", Completed: true},
	}}
	repl, out := newREPL(conn, lister)
	ctx := context.Background()

	repl.handleLine(ctx, "/reminders")
	if !strings.Contains(out.String(), "July 9, 2024 at 4:00 PM") || strings.Contains(out.String(), "Check sugars") {
		t.Errorf("/reminders output = %q", out.String())
	}

	out.Reset()
	repl.handleLine(ctx, "/reminders completed")
	if !strings.Contains(out.String(), "Check sugars") {
		t.Errorf("/reminders completed output = %q", out.String())
	}

	out.Reset()
	repl.handleLine(ctx, "/reminders later")
	if !strings.Contains(out.String(), "unknown status") {
		t.Errorf("bad status output = %q", out.String())
	}

	out.Reset()
	repl.handleLine(ctx, "/dismiss")
	if !strings.Contains(out.String(), "No active reminder") {
		t.Errorf("/dismiss output = %q", out.String())
	}

	repl.sess.HandleNotification(model.NewNotification("Stretch", time.Now()))
	out.Reset()
	repl.handleLine(ctx, "/status")
	for _, want := range []string{"connection: OPEN", "attempts: 2", "active reminder: Stretch"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("/status output %q missing %q", out.String(), want)
		}
	}
	repl.handleLine(ctx, "/dismiss")
	if _, ok := repl.sess.Toast(); ok {
		t.Error("toast not dismissed")
	}

	repl.handleLine(ctx, "/reconnect")
	if conn.starts != 1 {
		t.Errorf("starts = %d, want 1", conn.starts)
	}

	out.Reset()
	repl.handleLine(ctx, "/history")
	if !strings.Contains(out.String(), "bot> Hello!") {
		t.Errorf("/history output = %q", out.String())
	}

	out.Reset()
	repl.handleLine(ctx, "/frobnicate")
	if !strings.Contains(out.String(), "Unknown command /frobnicate") {
		t.Errorf("unknown command output = %q", out.String())
	}

	if !repl.handleLine(ctx, "/quit") {
		t.Error("/quit should quit")
	}
}

func TestREPL_RemindersError(t *testing.T) {
	repl, out := newREPL(&fakeConn{}, fakeLister{err: errors.New("service unavailable")})

	repl.handleLine(context.Background(), "/reminders")

	if !strings.Contains(out.String(), "Failed to load reminders: service unavailable") {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPL_Run(t *testing.T) {
	conn := &fakeConn{state: connection.StateOpen}
	repl, _ := newREPL(conn, fakeLister{})

	in := &scriptedReader{lines: []string{"first", "", "second", "/quit", "never sent"}}
	if err := repl.run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(conn.sent) != 2 {
		t.Errorf("sent = %v, want first and second", conn.sent)
	}

	// EOF ends the loop.
	if err := repl.run(context.Background(), &scriptedReader{}); err != nil {
		t.Fatalf("run at EOF: %v", err)
	}
}

type interruptReader struct{ calls int }

func (r *interruptReader) Readline() (string, error) {
	r.calls++
	if r.calls == 1 {
		return "half typed", readline.ErrInterrupt
	}
	return "", readline.ErrInterrupt
}

func TestREPL_InterruptClearsThenQuits(t *testing.T) {
	repl, _ := newREPL(&fakeConn{}, fakeLister{})
	in := &interruptReader{}

	if err := repl.run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if in.calls != 2 {
		t.Errorf("calls = %d, want 2", in.calls)
	}
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := &console{out: &out}
	now := time.Now()

	c.HandleChat(model.NewChatMessage("echo", model.SenderUser, now))
	c.HandleChat(model.NewChatMessage("Reminder set", model.SenderBot, now))
	c.HandleNotification(model.NewNotification("Collect blood culture", now))
	c.HandleStatus(model.Status{Kind: model.StatusError, Message: "Could not parse time"})
	c.HandleStatus(model.Status{Kind: model.StatusConfirmation, Message: "Saved"})

	want := "bot> Reminder set\n*** Reminder! Collect blood culture ***\nerror: Could not parse time\nok: Saved\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestPrompt(t *testing.T) {
	sess := chat.NewSession(chat.Config{}, &fakeConn{})
	if got := prompt(sess); got != "you> " {
		t.Errorf("prompt = %q", got)
	}
	sess.HandleNotification(model.NewNotification("Stretch", time.Now()))
	if got := prompt(sess); got != "[reminder: Stretch] you> " {
		t.Errorf("prompt = %q", got)
	}
}

func TestBuildUpdate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	u, err := buildUpdate(true, "Post for OT", "2024-07-09 13:00", ist)
	if err != nil {
		t.Fatalf("buildUpdate: %v", err)
	}
	if *u.Task != "Post for OT" {
		t.Errorf("Task = %q", *u.Task)
	}
	if !u.ReminderTime.Equal(time.Date(2024, 7, 9, 7, 30, 0, 0, time.UTC)) {
		t.Errorf("ReminderTime = %v", u.ReminderTime)
	}

	u, err = buildUpdate(false, "", "2024-07-09T13:00:00Z", ist)
	if err != nil || u.Task != nil || u.ReminderTime == nil {
		t.Errorf("time-only update = %+v, %v", u, err)
	}

	if _, err := buildUpdate(false, "", "", ist); err == nil {
		t.Error("expected error for empty update")
	}
	if _, err := buildUpdate(true, "", "", ist); err == nil {
		t.Error("expected error for empty task")
	}
	if _, err := buildUpdate(false, "", "tomorrow", ist); err == nil {
		t.Error("expected error for unparseable time")
	}
}

func TestPrintReminders(t *testing.T) {
	var out bytes.Buffer
	if err := printReminders(&out, nil, time.UTC); err != nil {
		t.Fatal(err)
	}
	if out.String() != "No reminders found.\n" {
		t.Errorf("empty output = %q", out.String())
	}

	out.Reset()
	rs := []api.Reminder{{ID: "a1", Task: "Send Hb", ReminderTime: time.Date(2024, 7, 9, 16, 0, 0, 0, time.UTC), Completed: true}}
	if err := printReminders(&out, rs, time.UTC); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("output = %q", out.String())
	}
	for _, want := range []string{"a1", "done", "July 9, 2024 at 4:00 PM", "Send Hb"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}

func TestPrintChanges(t *testing.T) {
	var out bytes.Buffer
	changes := []reminder.Change{
		{Key: "a1", Type: reminder.ChangeCompleted, Reminder: api.Reminder{Task: "Send Hb", ReminderTimeRaw: "today"}},
		{Key: "b2", Type: reminder.ChangeRemoved, Reminder: api.Reminder{Task: "Post for OT"}},
	}
	if err := printChanges(&out, changes, time.UTC); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(lines[0], "completed a1  Send Hb (today)") {
		t.Errorf("line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "removed   b2  Post for OT (no time set)") {
		t.Errorf("line = %q", lines[1])
	}
}
