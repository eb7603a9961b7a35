package storage

import (
	"context"
	"errors"
)

var (
	ErrDuplicateEventID   = errors.New("event with same ID exists")
	ErrNotFoundEvent      = errors.New("event not found")
	ErrPermissionDenied   = errors.New("operation is not permitted for this user")
	ErrIncorrectEventDate = errors.New("incorrect event date")

	ErrDuplicateEmail = errors.New("user with same email exists")
	ErrNotFoundUser   = errors.New("user not found")

	ErrNotFoundInvitation = errors.New("invitation not found")
	ErrInvitationUsed     = errors.New("invitation is already used")

	ErrNotFoundSession = errors.New("session not found")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AddEvent(ctx context.Context, e *Event) error
	// UpdateEvent replaces the whole document keyed by id. Owner ID and
	// creation time of the stored record are kept. Fails with
	// ErrPermissionDenied when actorID is not the stored owner.
	UpdateEvent(ctx context.Context, id string, actorID string, e Event) error
	RemoveEvent(ctx context.Context, id string, actorID string) error
	// ListEvents returns all events ordered by date descending, events
	// with an unknown date last.
	ListEvents(ctx context.Context) ([]Event, error)

	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	// RegisterUser creates the user and marks the invitation used in one
	// atomic step. A missing or spent invitation fails the whole
	// registration and leaves no user behind.
	RegisterUser(ctx context.Context, u *User, invitationID string) error
	GetInvitation(ctx context.Context, id string) (Invitation, error)

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	RemoveSession(ctx context.Context, token string) error
}
