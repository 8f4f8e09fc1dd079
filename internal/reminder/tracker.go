package reminder

import (
	"slices"
	"sync"
	"time"

	"github.com/rickgao/remindchat/internal/api"
)

// ChangeType classifies a difference between two reminder lists.
type ChangeType string

const (
	ChangeCreated   ChangeType = "created"
	ChangeCompleted ChangeType = "completed"
	ChangeReopened  ChangeType = "reopened"
	ChangeUpdated   ChangeType = "updated"
	ChangeRemoved   ChangeType = "removed"
)

// Change is one reminder that differs from the previous sync.
type Change struct {
	Key      string
	Type     ChangeType
	Reminder api.Reminder
	Previous *api.Reminder // nil for ChangeCreated
}

// Tracker remembers the last synced reminder list and reports what changed.
type Tracker struct {
	mu         sync.Mutex
	reminders  map[string]api.Reminder
	synced     bool
	lastSyncAt time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{reminders: make(map[string]api.Reminder)}
}

// Reconcile replaces the tracked list and returns the changes in list order,
// followed by removals in key order. Reminders without a key are ignored.
func (t *Tracker) Reconcile(list []api.Reminder, now time.Time) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []Change
	next := make(map[string]api.Reminder, len(list))

	for _, r := range list {
		key := r.Key()
		if key == "" {
			continue
		}
		next[key] = r

		prev, ok := t.reminders[key]
		if !ok {
			changes = append(changes, Change{Key: key, Type: ChangeCreated, Reminder: r})
			continue
		}
		if typ, changed := diff(prev, r); changed {
			p := prev
			changes = append(changes, Change{Key: key, Type: typ, Reminder: r, Previous: &p})
		}
	}

	var removed []string
	for key := range t.reminders {
		if _, ok := next[key]; !ok {
			removed = append(removed, key)
		}
	}
	slices.Sort(removed)
	for _, key := range removed {
		prev := t.reminders[key]
		changes = append(changes, Change{Key: key, Type: ChangeRemoved, Reminder: prev, Previous: &prev})
	}

	t.reminders = next
	t.synced = true
	t.lastSyncAt = now
	return changes
}

// Synced reports whether Reconcile has run, and when it last did.
func (t *Tracker) Synced() (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.synced, t.lastSyncAt
}

// Len returns the number of tracked reminders.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.reminders)
}

func diff(prev, cur api.Reminder) (ChangeType, bool) {
	switch {
	case !prev.Completed && cur.Completed:
		return ChangeCompleted, true
	case prev.Completed && !cur.Completed:
		return ChangeReopened, true
	case prev.Task != cur.Task,
		!prev.ReminderTime.Equal(cur.ReminderTime),
		prev.ReminderTimeRaw != cur.ReminderTimeRaw:
		return ChangeUpdated, true
	}
	return "", false
}
