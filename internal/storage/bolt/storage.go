package boltstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	eventsBucket      = []byte("events")
	usersBucket       = []byte("users")
	invitationsBucket = []byte("invitations")
	sessionsBucket    = []byte("sessions")
)

type Config struct {
	Path string
}

// Storage keeps every record kind as JSON documents in its own bucket.
type Storage struct {
	path string
	db   *bolt.DB
}

func New(config Config) *Storage {
	return &Storage{path: config.Path}
}

func (s *Storage) Connect(_ context.Context) error {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db at %s: %w", s.path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{eventsBucket, usersBucket, invitationsBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create buckets: %w", err)
	}

	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return s.db.Close()
}

func put(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	if !e.Date.Known {
		return fmt.Errorf("event date must be a valid point in time: %w", storage.ErrIncorrectEventDate)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if e.ID == "" {
			e.ID = uuid.NewString()
		} else if b.Get([]byte(e.ID)) != nil {
			return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
		}
		return put(b, e.ID, e)
	})
}

func (s *Storage) UpdateEvent(_ context.Context, id string, actorID string, e storage.Event) error {
	if !e.Date.Known {
		return fmt.Errorf("event date must be a valid point in time: %w", storage.ErrIncorrectEventDate)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
		}
		var stored storage.Event
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal event %q: %w", id, err)
		}
		if stored.OwnerID != actorID {
			return fmt.Errorf("event %q is owned by another user: %w", id, storage.ErrPermissionDenied)
		}
		e.ID = id
		e.OwnerID = stored.OwnerID
		e.CreatedAt = stored.CreatedAt
		return put(b, id, e)
	})
}

func (s *Storage) RemoveEvent(_ context.Context, id string, actorID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
		}
		var stored storage.Event
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal event %q: %w", id, err)
		}
		if stored.OwnerID != actorID {
			return fmt.Errorf("event %q is owned by another user: %w", id, storage.ErrPermissionDenied)
		}
		return b.Delete([]byte(id))
	})
}

func (s *Storage) ListEvents(_ context.Context) ([]storage.Event, error) {
	events := make([]storage.Event, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			var e storage.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal event %q: %w", k, err)
			}
			events = append(events, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	storage.SortEventsByDate(events)
	return events, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	var found *storage.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(k, v []byte) error {
			var u storage.User
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("failed to unmarshal user %q: %w", k, err)
			}
			if u.Email == email {
				found = &u
			}
			return nil
		})
	})
	if err != nil {
		return storage.User{}, err
	}
	if found == nil {
		return storage.User{}, fmt.Errorf("no user with email %q: %w", email, storage.ErrNotFoundUser)
	}
	return *found, nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(usersBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("no user with id %q: %w", id, storage.ErrNotFoundUser)
		}
		return json.Unmarshal(data, &u)
	})
	return u, err
}

func (s *Storage) RegisterUser(_ context.Context, u *storage.User, invitationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		invitations := tx.Bucket(invitationsBucket)
		data := invitations.Get([]byte(invitationID))
		if data == nil {
			return fmt.Errorf("no invitation %q: %w", invitationID, storage.ErrNotFoundInvitation)
		}
		var invitation storage.Invitation
		if err := json.Unmarshal(data, &invitation); err != nil {
			return fmt.Errorf("failed to unmarshal invitation %q: %w", invitationID, err)
		}
		if invitation.Used {
			return fmt.Errorf("invitation %q: %w", invitationID, storage.ErrInvitationUsed)
		}

		users := tx.Bucket(usersBucket)
		var taken bool
		err := users.ForEach(func(k, v []byte) error {
			var existing storage.User
			if err := json.Unmarshal(v, &existing); err != nil {
				return err
			}
			if existing.Email == u.Email {
				taken = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("email %q: %w", u.Email, storage.ErrDuplicateEmail)
		}

		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if err := put(users, u.ID, u); err != nil {
			return err
		}

		now := time.Now().UTC()
		invitation.Used = true
		invitation.UsedBy = u.ID
		invitation.UsedAt = &now
		return put(invitations, invitationID, invitation)
	})
}

func (s *Storage) GetInvitation(_ context.Context, id string) (storage.Invitation, error) {
	var invitation storage.Invitation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(invitationsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("no invitation %q: %w", id, storage.ErrNotFoundInvitation)
		}
		return json.Unmarshal(data, &invitation)
	})
	return invitation, err
}

// SeedInvitation stores an unused invitation. Issued out-of-band, so not
// part of the Storage interface.
func (s *Storage) SeedInvitation(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(invitationsBucket), id, storage.Invitation{ID: id})
	})
}

func (s *Storage) CreateSession(_ context.Context, sess *storage.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if sess.Token == "" {
			sess.Token = uuid.NewString()
		}
		return put(tx.Bucket(sessionsBucket), sess.Token, sess)
	})
}

func (s *Storage) GetSession(_ context.Context, token string) (storage.Session, error) {
	var sess storage.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(token))
		if data == nil {
			return storage.ErrNotFoundSession
		}
		return json.Unmarshal(data, &sess)
	})
	return sess, err
}

func (s *Storage) RemoveSession(_ context.Context, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(token)) == nil {
			return storage.ErrNotFoundSession
		}
		return b.Delete([]byte(token))
	})
}
