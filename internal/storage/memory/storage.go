package memorystorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
	"github.com/google/uuid"
)

type Storage struct {
	mu          sync.RWMutex
	events      map[string]storage.Event
	users       map[string]storage.User
	invitations map[string]storage.Invitation
	sessions    map[string]storage.Session
}

func New() *Storage {
	return &Storage{
		events:      make(map[string]storage.Event),
		users:       make(map[string]storage.User),
		invitations: make(map[string]storage.Invitation),
		sessions:    make(map[string]storage.Session),
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	if !e.Date.Known {
		return fmt.Errorf("event date must be a valid point in time: %w", storage.ErrIncorrectEventDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.events[e.ID] = *e
	return nil
}

func (s *Storage) UpdateEvent(_ context.Context, id string, actorID string, e storage.Event) error {
	if !e.Date.Known {
		return fmt.Errorf("event date must be a valid point in time: %w", storage.ErrIncorrectEventDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.events[id]
	if !ok {
		return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if stored.OwnerID != actorID {
		return fmt.Errorf("event %q is owned by another user: %w", id, storage.ErrPermissionDenied)
	}
	e.ID = id
	e.OwnerID = stored.OwnerID
	e.CreatedAt = stored.CreatedAt
	s.events[id] = e
	return nil
}

func (s *Storage) RemoveEvent(_ context.Context, id string, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.events[id]
	if !ok {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if stored.OwnerID != actorID {
		return fmt.Errorf("event %q is owned by another user: %w", id, storage.ErrPermissionDenied)
	}
	delete(s.events, id)
	return nil
}

func (s *Storage) ListEvents(_ context.Context) ([]storage.Event, error) {
	s.mu.RLock()
	events := make([]storage.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.RUnlock()

	storage.SortEventsByDate(events)
	return events, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return storage.User{}, fmt.Errorf("no user with email %q: %w", email, storage.ErrNotFoundUser)
}

func (s *Storage) GetUserByID(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, fmt.Errorf("no user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, nil
}

func (s *Storage) RegisterUser(_ context.Context, u *storage.User, invitationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invitation, ok := s.invitations[invitationID]
	if !ok {
		return fmt.Errorf("no invitation %q: %w", invitationID, storage.ErrNotFoundInvitation)
	}
	if invitation.Used {
		return fmt.Errorf("invitation %q: %w", invitationID, storage.ErrInvitationUsed)
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email %q: %w", u.Email, storage.ErrDuplicateEmail)
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = *u

	now := time.Now().UTC()
	invitation.Used = true
	invitation.UsedBy = u.ID
	invitation.UsedAt = &now
	s.invitations[invitationID] = invitation
	return nil
}

func (s *Storage) GetInvitation(_ context.Context, id string) (storage.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invitation, ok := s.invitations[id]
	if !ok {
		return storage.Invitation{}, fmt.Errorf("no invitation %q: %w", id, storage.ErrNotFoundInvitation)
	}
	return invitation, nil
}

// SeedInvitation stores an unused invitation. Invitations are issued
// out-of-band, so this is not part of the Storage interface.
func (s *Storage) SeedInvitation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[id] = storage.Invitation{ID: id}
}

func (s *Storage) CreateSession(_ context.Context, sess *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Token == "" {
		sess.Token = uuid.NewString()
	}
	s.sessions[sess.Token] = *sess
	return nil
}

func (s *Storage) GetSession(_ context.Context, token string) (storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return storage.Session{}, storage.ErrNotFoundSession
	}
	return sess, nil
}

func (s *Storage) RemoveSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return storage.ErrNotFoundSession
	}
	delete(s.sessions, token)
	return nil
}
