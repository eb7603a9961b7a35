package feed

import (
	"context"
	"sync"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/storage"
	log "github.com/sirupsen/logrus"
)

// Lister supplies the full ordered event list.
type Lister interface {
	ListEvents(ctx context.Context) ([]storage.Event, error)
}

// Hub republishes a complete snapshot of the event list to every subscriber
// whenever a change is committed. Subscribers always see whole lists, never
// partial updates; a failed re-read keeps the last good snapshot in place.
type Hub struct {
	lister Lister

	mu     sync.RWMutex
	last   []storage.Event
	primed bool
	subs   map[chan []storage.Event]struct{}
}

func NewHub(lister Lister) *Hub {
	return &Hub{
		lister: lister,
		subs:   make(map[chan []storage.Event]struct{}),
	}
}

// EventsChanged implements app.Notifier.
func (h *Hub) EventsChanged(ctx context.Context, _ app.Change) {
	events, err := h.lister.ListEvents(ctx)
	if err != nil {
		log.Errorf("failed to rebuild event snapshot: %v", err)
		return
	}
	h.publish(events)
}

// Subscribe registers a snapshot channel primed with the current list. The
// returned cancel func must be called when the consumer goes away. A slow
// consumer only ever misses intermediate snapshots: the channel holds the
// latest one.
func (h *Hub) Subscribe(ctx context.Context) (<-chan []storage.Event, func(), error) {
	h.mu.Lock()
	if !h.primed {
		h.mu.Unlock()
		events, err := h.lister.ListEvents(ctx)
		if err != nil {
			return nil, nil, err
		}
		h.mu.Lock()
		if !h.primed {
			h.last = events
			h.primed = true
		}
	}

	ch := make(chan []storage.Event, 1)
	ch <- h.last
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

func (h *Hub) publish(events []storage.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = events
	h.primed = true
	for ch := range h.subs {
		// Drop the stale snapshot if the subscriber has not read it yet.
		select {
		case <-ch:
		default:
		}
		ch <- events
	}
}
