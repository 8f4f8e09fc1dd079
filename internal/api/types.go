package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMissingID is returned when an operation needs a reminder ID and got none.
var ErrMissingID = errors.New("reminder id is required")

// Reminder is a reminder record from GET /reminders.
//
// The service has emitted the identifier under "_id", "id" and "reminderId"
// over time; all three are accepted. Fields this client does not know about
// are kept in Extra.
type Reminder struct {
	ID         string `json:"_id,omitempty"`
	AltID      string `json:"id,omitempty"`
	ReminderID string `json:"reminderId,omitempty"`

	Task         string     `json:"task"`
	ReminderTime time.Time  `json:"reminder_time"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// ReminderTimeRaw holds reminder_time verbatim when it could not be parsed.
	ReminderTimeRaw string `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Key returns the first non-empty identifier.
func (r Reminder) Key() string {
	switch {
	case r.ID != "":
		return r.ID
	case r.AltID != "":
		return r.AltID
	default:
		return r.ReminderID
	}
}

var knownReminderFields = map[string]bool{
	"_id":           true,
	"id":            true,
	"reminderId":    true,
	"task":          true,
	"reminder_time": true,
	"completed":     true,
	"completed_at":  true,
}

// timestamp layouts the service emits. Python's isoformat omits the zone for
// naive datetimes, which are UTC on the server.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON decodes a reminder leniently.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var out Reminder
	str := func(key string) (string, error) {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("field %s: %w", key, err)
		}
		return s, nil
	}

	var err error
	if out.ID, err = str("_id"); err != nil {
		return err
	}
	if out.AltID, err = str("id"); err != nil {
		return err
	}
	if out.ReminderID, err = str("reminderId"); err != nil {
		return err
	}
	if out.Task, err = str("task"); err != nil {
		return err
	}

	if raw, ok := fields["completed"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out.Completed); err != nil {
			return fmt.Errorf("field completed: %w", err)
		}
	}

	ts, err := str("reminder_time")
	if err != nil {
		return err
	}
	if ts != "" {
		if t, perr := parseTimestamp(ts); perr == nil {
			out.ReminderTime = t
		} else {
			out.ReminderTimeRaw = ts
		}
	}

	cts, err := str("completed_at")
	if err != nil {
		return err
	}
	if cts != "" {
		if t, perr := parseTimestamp(cts); perr == nil {
			out.CompletedAt = &t
		}
	}

	for k, v := range fields {
		if knownReminderFields[k] {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = v
	}

	*r = out
	return nil
}

// ReminderUpdate is the body of PUT /reminders/{id}. Nil fields are omitted.
type ReminderUpdate struct {
	Task         *string    `json:"task,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
	Completed    *bool      `json:"completed,omitempty"`
}
