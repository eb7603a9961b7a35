package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidEmail       = errors.New("malformed email address")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidInvitation  = errors.New("invalid invitation")
)

type Config struct {
	SessionTTL time.Duration
}

type Auth struct {
	storage    storage.Storage
	sessionTTL time.Duration
}

func New(config Config, stor storage.Storage) *Auth {
	ttl := config.SessionTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{storage: stor, sessionTTL: ttl}
}

func (a *Auth) Login(ctx context.Context, email, password string) (storage.Session, storage.User, error) {
	user, err := a.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFoundUser) {
		return storage.Session{}, storage.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return storage.Session{}, storage.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return storage.Session{}, storage.User{}, ErrInvalidCredentials
	}

	session, err := a.createSession(ctx, user.ID)
	if err != nil {
		return storage.Session{}, storage.User{}, err
	}
	return session, user, nil
}

func (a *Auth) Logout(ctx context.Context, token string) error {
	err := a.storage.RemoveSession(ctx, token)
	if errors.Is(err, storage.ErrNotFoundSession) {
		return nil
	}
	return err
}

// UserFromToken resolves the session token to its user. Expired sessions are
// removed and reported as not found.
func (a *Auth) UserFromToken(ctx context.Context, token string) (storage.User, error) {
	session, err := a.storage.GetSession(ctx, token)
	if err != nil {
		return storage.User{}, err
	}
	if session.Expired(time.Now()) {
		if err := a.storage.RemoveSession(ctx, token); err != nil {
			log.Errorf("failed to remove expired session: %v", err)
		}
		return storage.User{}, storage.ErrNotFoundSession
	}
	return a.storage.GetUserByID(ctx, session.UserID)
}

// ValidateInvitation reports whether the invitation may still gate a
// registration. An empty ID, a missing record, a spent record and a fetch
// error are all just "invalid"; the caller cannot tell them apart.
func (a *Auth) ValidateInvitation(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	invitation, err := a.storage.GetInvitation(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFoundInvitation) {
			log.Errorf("failed to validate invitation: %v", err)
		}
		return false
	}
	return !invitation.Used
}

type RegisterParams struct {
	Email           string
	DisplayName     string
	Password        string
	ConfirmPassword string
	InvitationID    string
}

// Register validates the parameters, then creates the account and redeems
// the invitation in one storage transaction. Validation failures happen
// before any storage call.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (storage.User, error) {
	if params.Password != params.ConfirmPassword {
		return storage.User{}, ErrPasswordMismatch
	}
	if params.InvitationID == "" {
		return storage.User{}, ErrInvalidInvitation
	}
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return storage.User{}, ErrInvalidEmail
	}
	if len(params.Password) < minPasswordLength {
		return storage.User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := storage.User{
		Email:        params.Email,
		DisplayName:  params.DisplayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	err = a.storage.RegisterUser(ctx, &user, params.InvitationID)
	if errors.Is(err, storage.ErrNotFoundInvitation) || errors.Is(err, storage.ErrInvitationUsed) {
		return storage.User{}, ErrInvalidInvitation
	}
	if err != nil {
		return storage.User{}, err
	}
	return user, nil
}

// CreateSessionFor opens a session for a freshly registered user.
func (a *Auth) CreateSessionFor(ctx context.Context, userID string) (storage.Session, error) {
	return a.createSession(ctx, userID)
}

func (a *Auth) createSession(ctx context.Context, userID string) (storage.Session, error) {
	now := time.Now().UTC()
	session := storage.Session{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.sessionTTL),
	}
	if err := a.storage.CreateSession(ctx, &session); err != nil {
		return storage.Session{}, err
	}
	return session, nil
}

// UserMessage maps a known error to a message suitable for the UI. Unknown
// errors fall back to a generic message.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match."
	case errors.Is(err, ErrInvalidEmail):
		return "The email address is malformed."
	case errors.Is(err, ErrWeakPassword):
		return "The password is too weak. Choose a stronger one."
	case errors.Is(err, ErrInvalidInvitation):
		return "The invitation link is invalid."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is incorrect."
	case errors.Is(err, storage.ErrDuplicateEmail):
		return "This email address is already in use."
	default:
		return "Something went wrong. Please try again."
	}
}
