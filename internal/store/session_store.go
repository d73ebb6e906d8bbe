package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vbonduro/pullsheet/internal/db"
)

// SessionStore maps opaque bearer tokens to profile ids.
type SessionStore struct {
	db *db.DB
}

func NewSessionStore(d *db.DB) *SessionStore {
	return &SessionStore{db: d}
}

func (s *SessionStore) Create(ctx context.Context, token, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)
	`), token, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Lookup returns the user id for token, or "" when the token is unknown.
func (s *SessionStore) Lookup(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT user_id FROM sessions WHERE token = ?
	`), token).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	return userID, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE token = ?`), token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUser revokes every session of a user, e.g. after deactivation.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
