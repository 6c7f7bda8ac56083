package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when no signed-in session is persisted.
var ErrNoSession = errors.New("no saved session")

// ErrSessionExpired is returned when the persisted access credential has expired.
var ErrSessionExpired = errors.New("saved session expired")

// Session is the persisted client state: the access credential and the
// signed-in user's minimal profile.
type Session struct {
	UserID       string
	Username     string
	FullName     string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// ExpiresAt returns the expiry of the access credential, read from its JWT
// "exp" claim without verifying the signature. The zero time means the token
// carries no expiry or is not a JWT.
func (s *Session) ExpiresAt() time.Time {
	if s.AccessToken == "" {
		return time.Time{}
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Expired reports whether the access credential has expired at now.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// SaveSession replaces the persisted session.
func (s *Store) SaveSession(sess *Session) error {
	if sess.UserID == "" || sess.AccessToken == "" {
		return fmt.Errorf("save session: user id and access token are required")
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO session (slot, user_id, username, full_name, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			full_name = excluded.full_name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, sess.UserID, sess.Username, sess.FullName, sess.AccessToken, sess.RefreshToken, now)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	sess.UpdatedAt = now
	return nil
}

// LoadSession returns the persisted session. It returns ErrNoSession when
// nobody is signed in and ErrSessionExpired when the credential has expired.
func (s *Store) LoadSession() (*Session, error) {
	var sess Session
	err := s.db.QueryRow(`
		SELECT user_id, username, full_name, access_token, refresh_token, updated_at
		FROM session WHERE slot = 1
	`).Scan(&sess.UserID, &sess.Username, &sess.FullName, &sess.AccessToken, &sess.RefreshToken, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.Expired(time.Now()) {
		return &sess, ErrSessionExpired
	}

	return &sess, nil
}

// ClearSession removes the persisted session. It is safe to call when no
// session exists.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec(`DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
