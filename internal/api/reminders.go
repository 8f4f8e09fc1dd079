package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GetReminders fetches every reminder.
func (c *Client) GetReminders(ctx context.Context) ([]Reminder, error) {
	var reminders []Reminder
	if err := c.call(ctx, http.MethodGet, "/reminders", nil, &reminders); err != nil {
		return nil, fmt.Errorf("get reminders: %w", err)
	}
	return reminders, nil
}

// ToggleReminderCompletion flips the completed flag and returns the updated
// reminder. The toggle is not idempotent, so it is never retried.
func (c *Client) ToggleReminderCompletion(ctx context.Context, id string) (*Reminder, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	var r Reminder
	if err := c.call(ctx, http.MethodPatch, reminderPath(id), nil, &r); err != nil {
		return nil, fmt.Errorf("toggle reminder %s: %w", id, err)
	}
	return &r, nil
}

// UpdateReminder replaces the given fields and returns the updated reminder.
func (c *Client) UpdateReminder(ctx context.Context, id string, update ReminderUpdate) (*Reminder, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	var r Reminder
	if err := c.call(ctx, http.MethodPut, reminderPath(id), update, &r); err != nil {
		return nil, fmt.Errorf("update reminder %s: %w", id, err)
	}
	return &r, nil
}

// DeleteReminder deletes one reminder.
func (c *Client) DeleteReminder(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	if err := c.call(ctx, http.MethodDelete, reminderPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete reminder %s: %w", id, err)
	}
	return nil
}

func reminderPath(id string) string {
	return "/reminders/" + url.PathEscape(id)
}
