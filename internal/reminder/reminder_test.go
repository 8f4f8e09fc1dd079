package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/remindchat/internal/api"
)

func sample() []api.Reminder {
	return []api.Reminder{
		{ID: "a", Task: "Send Hb, Tc", ReminderTime: time.Date(2024, 7, 9, 16, 0, 0, 0, time.UTC)},
		{ID: "b", Task: "check sugars", ReminderTime: time.Date(2024, 7, 9, 13, 0, 0, 0, time.UTC), Completed: true},
		{ID: "c", Task: "Remove Foleys", ReminderTimeRaw: "someday"},
		{ID: "d", Task: "Post for OT", ReminderTime: time.Date(2024, 7, 10, 13, 0, 0, 0, time.UTC)},
	}
}

func keys(rs []api.Reminder) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Key()
	}
	return out
}

func TestFilter(t *testing.T) {
	rs := sample()

	assert.Equal(t, []string{"a", "b", "c", "d"}, keys(Filter(rs, StatusAll)))
	assert.Equal(t, []string{"a", "c", "d"}, keys(Filter(rs, StatusPending)))
	assert.Equal(t, []string{"b"}, keys(Filter(rs, StatusCompleted)))
	assert.Empty(t, Filter(nil, StatusPending))
}

func TestSort(t *testing.T) {
	tests := []struct {
		order SortOrder
		want  []string
	}{
		{SortTimeAsc, []string{"b", "a", "d", "c"}},
		{SortTimeDesc, []string{"d", "a", "b", "c"}},
		{SortTask, []string{"b", "d", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			rs := sample()
			Sort(rs, tt.order)
			assert.Equal(t, tt.want, keys(rs))
		})
	}
}

func TestParseStatusAndSort(t *testing.T) {
	st, err := ParseStatus("Pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)

	st, err = ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusAll, st)

	_, err = ParseStatus("done")
	assert.Error(t, err)

	o, err := ParseSortOrder("-time")
	require.NoError(t, err)
	assert.Equal(t, SortTimeDesc, o)

	_, err = ParseSortOrder("priority")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	r := api.Reminder{ReminderTime: time.Date(2024, 7, 9, 7, 30, 0, 0, time.UTC)}

	assert.Equal(t, "July 9, 2024 at 1:00 PM", Format(r, ist))
	assert.Equal(t, "July 9, 2024 at 7:30 AM", Format(r, time.UTC))
	assert.Equal(t, "someday", Format(api.Reminder{ReminderTimeRaw: "someday"}, nil))
	assert.Equal(t, "no time set", Format(api.Reminder{}, nil))
}

type fakeDeleter struct {
	mu       sync.Mutex
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    []string
}

func (f *fakeDeleter) DeleteReminder(ctx context.Context, id string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return errors.New("delete " + id + ": boom")
	}
	return nil
}

func TestDeleteAll(t *testing.T) {
	d := &fakeDeleter{fail: map[string]bool{"c": true}}
	ids := []string{"a", "b", "c", "d", "e", "f"}

	deleted, err := DeleteAll(context.Background(), d, ids, 2)

	assert.Equal(t, []string{"a", "b", "d", "e", "f"}, deleted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete c")
	assert.LessOrEqual(t, d.peak.Load(), int32(2))
	assert.Len(t, d.calls, 6)
}

func TestDeleteAll_AllSucceed(t *testing.T) {
	d := &fakeDeleter{}
	ids := []string{"x", "y", "z"}

	deleted, err := DeleteAll(context.Background(), d, ids, 3)

	require.NoError(t, err)
	assert.Equal(t, ids, deleted)
	deleted[0] = "changed"
	assert.Equal(t, "x", ids[0], "returned slice must not alias the input")
}

func TestDeleteAll_CancelledContext(t *testing.T) {
	d := &fakeDeleter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deleted, err := DeleteAll(ctx, d, []string{"a", "b"}, 0)

	assert.Empty(t, deleted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.calls)
}
