package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/storage"
	memorystorage "github.com/aokihara/eventboard/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	changes []app.Change
}

func (n *recordingNotifier) EventsChanged(_ context.Context, change app.Change) {
	n.changes = append(n.changes, change)
}

func newEvent(owner string, date time.Time) storage.Event {
	return storage.Event{Title: "test", Date: storage.KnownDate(date), OwnerID: owner}
}

func TestEventLifecycleNotifies(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2300, 1, 1, 10, 0, 0, 0, time.UTC)

	notifier := &recordingNotifier{}
	a := app.New(memorystorage.New(), notifier)

	id, err := a.CreateEvent(ctx, newEvent("owner-1", date))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	events, err := a.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.False(t, events[0].CreatedAt.IsZero())
	require.True(t, events[0].CreatedAt.Equal(events[0].UpdatedAt))

	updated := events[0]
	updated.Title = "updated"
	require.NoError(t, a.UpdateEvent(ctx, id, "owner-1", updated))
	require.NoError(t, a.RemoveEvent(ctx, id, "owner-1"))

	require.Len(t, notifier.changes, 3)
	require.Equal(t, "create", notifier.changes[0].Op)
	require.Equal(t, "update", notifier.changes[1].Op)
	require.Equal(t, "remove", notifier.changes[2].Op)
	require.Equal(t, id, notifier.changes[0].EventID)
}

func TestFailedWriteDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2300, 1, 1, 10, 0, 0, 0, time.UTC)

	notifier := &recordingNotifier{}
	a := app.New(memorystorage.New(), notifier)

	id, err := a.CreateEvent(ctx, newEvent("owner-1", date))
	require.NoError(t, err)
	notifier.changes = nil

	e := newEvent("owner-1", date)
	require.ErrorIs(t, a.UpdateEvent(ctx, id, "owner-2", e), storage.ErrPermissionDenied)
	require.ErrorIs(t, a.RemoveEvent(ctx, id, "owner-2"), storage.ErrPermissionDenied)
	require.Empty(t, notifier.changes)
}

func TestOwnEvents(t *testing.T) {
	date := storage.KnownDate(time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC))
	tests := []struct {
		name     string
		events   []storage.Event
		userID   string
		expected []string
	}{
		{name: "empty list", events: nil, userID: "u1", expected: []string{}},
		{
			name: "only matching owner",
			events: []storage.Event{
				{ID: "a", OwnerID: "u1", Date: date},
				{ID: "b", OwnerID: "u2", Date: date},
				{ID: "c", OwnerID: "u1", Date: date},
			},
			userID:   "u1",
			expected: []string{"a", "c"},
		},
		{
			name:     "no matches",
			events:   []storage.Event{{ID: "a", OwnerID: "u2", Date: date}},
			userID:   "u1",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			own := app.OwnEvents(tt.events, tt.userID)
			ids := make([]string, 0, len(own))
			for _, e := range own {
				ids = append(ids, e.ID)
			}
			require.Equal(t, tt.expected, ids)
		})
	}
}

func TestUpcomingEvents(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	events := []storage.Event{
		{ID: "past", Date: storage.KnownDate(now.Add(-time.Hour))},
		{ID: "exactly-now", Date: storage.KnownDate(now)},
		{ID: "future", Date: storage.KnownDate(now.Add(time.Hour))},
		{ID: "unknown-date", Date: storage.Date{}},
	}

	upcoming := app.UpcomingEvents(events, now)
	ids := make([]string, 0, len(upcoming))
	for _, e := range upcoming {
		ids = append(ids, e.ID)
	}
	// at-or-after now qualifies; unknown dates are excluded, not upcoming
	require.Equal(t, []string{"exactly-now", "future"}, ids)

	require.Empty(t, app.UpcomingEvents(nil, now))
}
