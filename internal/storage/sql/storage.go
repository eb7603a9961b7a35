package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const pqErrUniqueViolation = "23505"

type Config struct {
	// Driver is "postgres" or "sqlite3".
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	config Config
	db     *sqlx.DB
}

func New(config Config) *Storage {
	return &Storage{config: config}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, s.config.Driver, s.dsn())
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) dsn() string {
	if s.config.Driver == "sqlite3" {
		return s.config.Database
	}
	return fmt.Sprintf(
		"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
		s.config.Host, s.config.Port, s.config.Database, s.config.Username, s.config.Password)
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqErrUniqueViolation {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return true
	}
	return false
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	if !e.Date.Known {
		return fmt.Errorf("event date must be a valid point in time: %w", storage.ErrIncorrectEventDate)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(
		ctx,
		s.db.Rebind("INSERT INTO events(id, title, type, description, location, date, owner_name, owner_id, url, created_at, updated_at) "+
			"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		e.ID, e.Title, e.Type, e.Description, e.Location, e.Date, e.OwnerName, e.OwnerID, e.URL,
		e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	return err
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, actorID string, e storage.Event) error {
	if !e.Date.Known {
		return fmt.Errorf("event date must be a valid point in time: %w", storage.ErrIncorrectEventDate)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	ownerID, err := eventOwner(ctx, tx, id)
	if err != nil {
		return err
	}
	if ownerID != actorID {
		return fmt.Errorf("event %q is owned by another user: %w", id, storage.ErrPermissionDenied)
	}

	_, err = tx.ExecContext(
		ctx,
		tx.Rebind("UPDATE events SET title=?, type=?, description=?, location=?, date=?, owner_name=?, url=?, updated_at=? WHERE id=?"),
		e.Title, e.Type, e.Description, e.Location, e.Date, e.OwnerName, e.URL, e.UpdatedAt.UTC(), id)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) RemoveEvent(ctx context.Context, id string, actorID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	ownerID, err := eventOwner(ctx, tx, id)
	if err != nil {
		return err
	}
	if ownerID != actorID {
		return fmt.Errorf("event %q is owned by another user: %w", id, storage.ErrPermissionDenied)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM events WHERE id=?"), id); err != nil {
		return err
	}
	return tx.Commit()
}

func eventOwner(ctx context.Context, tx *sqlx.Tx, id string) (string, error) {
	var ownerID string
	err := tx.GetContext(ctx, &ownerID, tx.Rebind("SELECT owner_id FROM events WHERE id=?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return ownerID, err
}

func (s *Storage) ListEvents(ctx context.Context) ([]storage.Event, error) {
	events := make([]storage.Event, 0)
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT id, title, type, description, location, date, owner_name, owner_id, url, created_at, updated_at "+
			"FROM events ORDER BY (date IS NULL), date DESC")
	return events, err
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(
		ctx, &u,
		s.db.Rebind("SELECT id, email, display_name, password_hash, created_at FROM users WHERE email=?"), email)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("no user with email %q: %w", email, storage.ErrNotFoundUser)
	}
	return u, err
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(
		ctx, &u,
		s.db.Rebind("SELECT id, email, display_name, password_hash, created_at FROM users WHERE id=?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("no user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, err
}

// RegisterUser inserts the user and redeems the invitation in one
// transaction, so a failure at any step leaves the invitation reusable and
// no orphaned account behind.
func (s *Storage) RegisterUser(ctx context.Context, u *storage.User, invitationID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var invitation storage.Invitation
	err = tx.GetContext(
		ctx, &invitation,
		tx.Rebind("SELECT id, used, used_by, used_at FROM invitations WHERE id=?"), invitationID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no invitation %q: %w", invitationID, storage.ErrNotFoundInvitation)
	}
	if err != nil {
		return err
	}
	if invitation.Used {
		return fmt.Errorf("invitation %q: %w", invitationID, storage.ErrInvitationUsed)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err = tx.ExecContext(
		ctx,
		tx.Rebind("INSERT INTO users(id, email, display_name, password_hash, created_at) VALUES(?, ?, ?, ?, ?)"),
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("email %q: %w", u.Email, storage.ErrDuplicateEmail)
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		tx.Rebind("UPDATE invitations SET used=?, used_by=?, used_at=? WHERE id=?"),
		true, u.ID, time.Now().UTC(), invitationID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) GetInvitation(ctx context.Context, id string) (storage.Invitation, error) {
	var invitation storage.Invitation
	err := s.db.GetContext(
		ctx, &invitation,
		s.db.Rebind("SELECT id, used, used_by, used_at FROM invitations WHERE id=?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Invitation{}, fmt.Errorf("no invitation %q: %w", id, storage.ErrNotFoundInvitation)
	}
	return invitation, err
}

// SeedInvitation stores an unused invitation. Issued out-of-band, so not
// part of the Storage interface.
func (s *Storage) SeedInvitation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("INSERT INTO invitations(id, used) VALUES(?, ?)"), id, false)
	return err
}

func (s *Storage) CreateSession(ctx context.Context, sess *storage.Session) error {
	if sess.Token == "" {
		sess.Token = uuid.NewString()
	}
	_, err := s.db.ExecContext(
		ctx,
		s.db.Rebind("INSERT INTO sessions(token, user_id, created_at, expires_at) VALUES(?, ?, ?, ?)"),
		sess.Token, sess.UserID, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC())
	return err
}

func (s *Storage) GetSession(ctx context.Context, token string) (storage.Session, error) {
	var sess storage.Session
	err := s.db.GetContext(
		ctx, &sess,
		s.db.Rebind("SELECT token, user_id, created_at, expires_at FROM sessions WHERE token=?"), token)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Session{}, storage.ErrNotFoundSession
	}
	return sess, err
}

func (s *Storage) RemoveSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sessions WHERE token=?"), token)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFoundSession
	}
	return nil
}
