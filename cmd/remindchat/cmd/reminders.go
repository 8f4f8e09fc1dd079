package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/remindchat/internal/api"
	"github.com/rickgao/remindchat/internal/config"
	"github.com/rickgao/remindchat/internal/poller"
	"github.com/rickgao/remindchat/internal/reminder"
)

var remindersCmd = &cobra.Command{
	Use:     "reminders",
	Aliases: []string{"r"},
	Short:   "Manage saved reminders",
}

var (
	listStatus  string
	listSort    string
	updateTask  string
	updateTime  string
	deleteLimit int
)

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	Args:  cobra.NoArgs,
	RunE:  runRemindersList,
}

var remindersToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Toggle a reminder between pending and completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemindersToggle,
}

var remindersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a reminder's task or time",
	Long: `Change a reminder's task or time.

--time accepts RFC 3339 ("2024-07-09T13:00:00+05:30") or a local
"2006-01-02 15:04" timestamp.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemindersUpdate,
}

var remindersDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more reminders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemindersDelete,
}

var remindersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the reminder list until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRemindersWatch,
}

func init() {
	rootCmd.AddCommand(remindersCmd)
	remindersCmd.AddCommand(remindersListCmd, remindersToggleCmd, remindersUpdateCmd, remindersDeleteCmd, remindersWatchCmd)

	for _, c := range []*cobra.Command{remindersListCmd, remindersWatchCmd} {
		c.Flags().StringVar(&listStatus, "status", "all", "filter by status (all, pending, completed)")
		c.Flags().StringVar(&listSort, "sort", "time", "sort order (time, -time, task)")
	}

	remindersUpdateCmd.Flags().StringVar(&updateTask, "task", "", "new task text")
	remindersUpdateCmd.Flags().StringVar(&updateTime, "time", "", "new reminder time")

	remindersDeleteCmd.Flags().IntVar(&deleteLimit, "concurrency", 4, "max deletes in flight")
}

// remindersEnv loads config and returns a client logging to stderr.
func remindersEnv(cmd *cobra.Command) (*api.Client, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := setupLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	return newAPIClient(cfg, logger), cfg, logger, nil
}

func listOptions() (reminder.Status, reminder.SortOrder, error) {
	status, err := reminder.ParseStatus(listStatus)
	if err != nil {
		return "", "", err
	}
	order, err := reminder.ParseSortOrder(listSort)
	if err != nil {
		return "", "", err
	}
	return status, order, nil
}

func runRemindersList(cmd *cobra.Command, args []string) error {
	status, order, err := listOptions()
	if err != nil {
		return err
	}
	client, _, _, err := remindersEnv(cmd)
	if err != nil {
		return err
	}

	all, err := client.GetReminders(cmd.Context())
	if err != nil {
		return err
	}

	view := reminder.Filter(all, status)
	reminder.Sort(view, order)
	return printReminders(cmd.OutOrStdout(), view, time.Local)
}

func runRemindersToggle(cmd *cobra.Command, args []string) error {
	client, _, _, err := remindersEnv(cmd)
	if err != nil {
		return err
	}

	r, err := client.ToggleReminderCompletion(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	state := "pending"
	if r.Completed {
		state = "completed"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s: %s\n", args[0], state, r.Task)
	return nil
}

func runRemindersUpdate(cmd *cobra.Command, args []string) error {
	update, err := buildUpdate(cmd.Flags().Changed("task"), updateTask, updateTime, time.Local)
	if err != nil {
		return err
	}
	client, _, _, err := remindersEnv(cmd)
	if err != nil {
		return err
	}

	r, err := client.UpdateReminder(cmd.Context(), args[0], update)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %s at %s\n", args[0], r.Task, reminder.Format(*r, time.Local))
	return nil
}

// buildUpdate turns the update flags into a partial update.
func buildUpdate(taskSet bool, task, when string, loc *time.Location) (api.ReminderUpdate, error) {
	var u api.ReminderUpdate
	if taskSet {
		if task == "" {
			return u, errors.New("--task cannot be empty")
		}
		u.Task = &task
	}
	if when != "" {
		t, err := parseLocalTime(when, loc)
		if err != nil {
			return u, err
		}
		u.ReminderTime = &t
	}
	if u.Task == nil && u.ReminderTime == nil {
		return u, errors.New("nothing to update: set --task and/or --time")
	}
	return u, nil
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --time %q: want RFC 3339 or \"2006-01-02 15:04\"", s)
	}
	return t, nil
}

func runRemindersDelete(cmd *cobra.Command, args []string) error {
	client, _, _, err := remindersEnv(cmd)
	if err != nil {
		return err
	}

	deleted, err := reminder.DeleteAll(cmd.Context(), client, args, deleteLimit)
	for _, id := range deleted {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	if err != nil {
		return fmt.Errorf("%d of %d deletes failed: %w", len(args)-len(deleted), len(args), err)
	}
	return nil
}

func runRemindersWatch(cmd *cobra.Command, args []string) error {
	status, order, err := listOptions()
	if err != nil {
		return err
	}
	client, cfg, logger, err := remindersEnv(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	tracker := reminder.NewTracker()
	handler := poller.HandlerFunc(func(all []api.Reminder) error {
		view := reminder.Filter(all, status)
		synced, _ := tracker.Synced()
		changes := tracker.Reconcile(view, time.Now())
		if !synced {
			reminder.Sort(view, order)
			return printReminders(out, view, time.Local)
		}
		return printChanges(out, changes, time.Local)
	})

	pcfg := poller.Config{
		Interval: cfg.Poller.Interval.Std(),
		Timeout:  cfg.Poller.Timeout.Std(),
	}
	p := poller.New(pcfg, client, handler, logger)
	if err := p.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Stop(stopCtx)
}

// printChanges prints one line per reminder change.
func printChanges(w io.Writer, changes []reminder.Change, loc *time.Location) error {
	for _, c := range changes {
		if _, err := fmt.Fprintf(w, "%s  %-9s %s  %s (%s)\n",
			time.Now().In(loc).Format(time.Kitchen), c.Type, c.Key, c.Reminder.Task, reminder.Format(c.Reminder, loc)); err != nil {
			return err
		}
	}
	return nil
}

// printReminders renders reminders as an aligned table.
func printReminders(w io.Writer, rs []api.Reminder, loc *time.Location) error {
	if len(rs) == 0 {
		_, err := fmt.Fprintln(w, "No reminders found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tWHEN\tTASK")
	for _, r := range rs {
		state := "pending"
		if r.Completed {
			state = "done"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key(), state, reminder.Format(r, loc), r.Task)
	}
	return tw.Flush()
}
