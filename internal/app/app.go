package app

import (
	"context"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
)

// Change describes one committed event write.
type Change struct {
	Op      string    `json:"op"` // "create", "update" or "remove"
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	OwnerID string    `json:"ownerId"`
	Time    time.Time `json:"time"`
}

// Notifier receives change notifications after a write is committed.
type Notifier interface {
	EventsChanged(ctx context.Context, change Change)
}

type App struct {
	Storage   storage.Storage
	notifiers []Notifier
}

func New(stor storage.Storage, notifiers ...Notifier) *App {
	return &App{Storage: stor, notifiers: notifiers}
}

func (a *App) CreateEvent(ctx context.Context, e storage.Event) (string, error) {
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return "", err
	}
	a.notify(ctx, Change{Op: "create", EventID: e.ID, Title: e.Title, OwnerID: e.OwnerID, Time: now})
	return e.ID, nil
}

func (a *App) UpdateEvent(ctx context.Context, id string, actorID string, e storage.Event) error {
	e.UpdatedAt = time.Now().UTC()
	if err := a.Storage.UpdateEvent(ctx, id, actorID, e); err != nil {
		return err
	}
	a.notify(ctx, Change{Op: "update", EventID: id, Title: e.Title, OwnerID: actorID, Time: e.UpdatedAt})
	return nil
}

func (a *App) RemoveEvent(ctx context.Context, id string, actorID string) error {
	if err := a.Storage.RemoveEvent(ctx, id, actorID); err != nil {
		return err
	}
	a.notify(ctx, Change{Op: "remove", EventID: id, OwnerID: actorID, Time: time.Now().UTC()})
	return nil
}

func (a *App) ListEvents(ctx context.Context) ([]storage.Event, error) {
	return a.Storage.ListEvents(ctx)
}

func (a *App) notify(ctx context.Context, change Change) {
	for _, n := range a.notifiers {
		n.EventsChanged(ctx, change)
	}
}

// OwnEvents is the subset of events owned by the given user. Pure derived
// computation over a snapshot.
func OwnEvents(events []storage.Event, userID string) []storage.Event {
	own := make([]storage.Event, 0)
	for _, e := range events {
		if e.OwnerID == userID {
			own = append(own, e)
		}
	}
	return own
}

// UpcomingEvents is the subset of events whose date is known and at or after
// now. Events with an unknown date are excluded, not treated as upcoming.
func UpcomingEvents(events []storage.Event, now time.Time) []storage.Event {
	upcoming := make([]storage.Event, 0)
	for _, e := range events {
		if e.Date.Known && !e.Date.Time.Before(now) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming
}
