// Package reminder implements the reminder list view: filtering, ordering,
// display formatting and bulk deletion.
package reminder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/remindchat/internal/api"
)

// Status selects reminders by completion.
type Status string

const (
	StatusAll       Status = "all"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus parses a status flag value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StatusAll:
		return StatusAll, nil
	case StatusPending, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q (want all, pending or completed)", s)
	}
}

// SortOrder selects the list ordering.
type SortOrder string

const (
	SortTimeAsc  SortOrder = "time"
	SortTimeDesc SortOrder = "-time"
	SortTask     SortOrder = "task"
)

// ParseSortOrder parses a sort flag value.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "", SortTimeAsc:
		return SortTimeAsc, nil
	case SortTimeDesc, SortTask:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (want time, -time or task)", s)
	}
}

// Filter returns the reminders matching status, preserving order.
func Filter(reminders []api.Reminder, status Status) []api.Reminder {
	out := make([]api.Reminder, 0, len(reminders))
	for _, r := range reminders {
		switch status {
		case StatusPending:
			if r.Completed {
				continue
			}
		case StatusCompleted:
			if !r.Completed {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Sort orders reminders in place. The sort is stable; reminders without a
// parseable time sort last in either time order.
func Sort(reminders []api.Reminder, order SortOrder) {
	slices.SortStableFunc(reminders, func(a, b api.Reminder) int {
		switch order {
		case SortTask:
			return cmp.Compare(strings.ToLower(a.Task), strings.ToLower(b.Task))
		case SortTimeDesc:
			return compareTime(a, b, true)
		default:
			return compareTime(a, b, false)
		}
	})
}

func compareTime(a, b api.Reminder, desc bool) int {
	az, bz := a.ReminderTime.IsZero(), b.ReminderTime.IsZero()
	switch {
	case az && bz:
		return 0
	case az:
		return 1
	case bz:
		return -1
	}
	c := a.ReminderTime.Compare(b.ReminderTime)
	if desc {
		return -c
	}
	return c
}

// DisplayLayout renders reminder times as "July 9, 2024 at 1:00 PM".
const DisplayLayout = "January 2, 2006 at 3:04 PM"

// Format renders the reminder's time in loc (time.Local when nil).
func Format(r api.Reminder, loc *time.Location) string {
	if r.ReminderTime.IsZero() {
		if r.ReminderTimeRaw != "" {
			return r.ReminderTimeRaw
		}
		return "no time set"
	}
	if loc == nil {
		loc = time.Local
	}
	return r.ReminderTime.In(loc).Format(DisplayLayout)
}

// Deleter deletes one reminder.
type Deleter interface {
	DeleteReminder(ctx context.Context, id string) error
}

// DeleteAll deletes ids with at most limit requests in flight. It returns
// the IDs that were deleted, in request order, and the joined errors of
// those that were not.
func DeleteAll(ctx context.Context, d Deleter, ids []string, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]error, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = fmt.Errorf("delete %s: %w", id, err)
				return results[i]
			}
			results[i] = d.DeleteReminder(ctx, id)
			return results[i]
		})
	}
	if err := g.Wait(); err == nil {
		return slices.Clone(ids), nil
	}

	var deleted []string
	for i, id := range ids {
		if results[i] == nil {
			deleted = append(deleted, id)
		}
	}
	return deleted, errors.Join(results...)
}
