package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/remindchat/internal/api"
)

func changeTypes(cs []Change) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Key + ":" + string(c.Type)
	}
	return out
}

func TestTracker_Reconcile(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC)

	synced, _ := tr.Synced()
	assert.False(t, synced)

	first := tr.Reconcile([]api.Reminder{
		{ID: "a", Task: "Send Hb"},
		{ID: "b", Task: "Check sugars"},
		{ID: "c", Task: "Remove Foleys"},
		{Task: "no key"},
	}, now)
	assert.Equal(t, []string{"a:created", "b:created", "c:created"}, changeTypes(first))
	assert.Equal(t, 3, tr.Len())

	second := tr.Reconcile([]api.Reminder{
		{ID: "a", Task: "Send Hb", Completed: true},
		{ID: "b", Task: "Check sugars at 4"},
		{ID: "d", Task: "Post for OT"},
	}, now.Add(time.Minute))
	assert.Equal(t, []string{"a:completed", "b:updated", "d:created", "c:removed"}, changeTypes(second))

	require.NotNil(t, second[1].Previous)
	assert.Equal(t, "Check sugars", second[1].Previous.Task)
	assert.Equal(t, "Remove Foleys", second[3].Reminder.Task)

	third := tr.Reconcile([]api.Reminder{
		{ID: "a", Task: "Send Hb"},
		{ID: "b", Task: "Check sugars at 4"},
		{ID: "d", Task: "Post for OT"},
	}, now.Add(2*time.Minute))
	assert.Equal(t, []string{"a:reopened"}, changeTypes(third))

	synced, at := tr.Synced()
	assert.True(t, synced)
	assert.Equal(t, now.Add(2*time.Minute), at)
}

func TestTracker_TimeChange(t *testing.T) {
	tr := NewTracker()
	t1 := time.Date(2024, 7, 9, 13, 0, 0, 0, time.UTC)

	tr.Reconcile([]api.Reminder{{ID: "a", Task: "x", ReminderTime: t1}}, t1)
	changes := tr.Reconcile([]api.Reminder{{ID: "a", Task: "x", ReminderTime: t1.Add(time.Hour)}}, t1)

	assert.Equal(t, []string{"a:updated"}, changeTypes(changes))

	// Same instant in another zone is not a change.
	changes = tr.Reconcile([]api.Reminder{{ID: "a", Task: "x", ReminderTime: t1.Add(time.Hour).In(time.FixedZone("IST", 19800))}}, t1)
	assert.Empty(t, changes)
}
