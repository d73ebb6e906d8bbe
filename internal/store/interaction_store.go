package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/pullsheet/internal/db"
	"github.com/vbonduro/pullsheet/internal/domain"
)

// InteractionStore is the audit log table.
type InteractionStore struct {
	db *db.DB
}

func NewInteractionStore(d *db.DB) *InteractionStore {
	return &InteractionStore{db: d}
}

func (s *InteractionStore) Append(ctx context.Context, in *domain.Interaction) error {
	payload := string(in.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO interactions (id, user_id, user_email, action, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), in.ID, in.UserID, in.UserEmail, in.Action, payload, in.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

// List returns the newest interactions first. Empty email or action means no
// filter on that column.
func (s *InteractionStore) List(ctx context.Context, email, action string, limit int) ([]*domain.Interaction, error) {
	var (
		where []string
		args  []any
	)
	if email != "" {
		where = append(where, "user_email = ?")
		args = append(args, email)
	}
	if action != "" {
		where = append(where, "action = ?")
		args = append(args, action)
	}

	query := `SELECT id, user_id, user_email, action, payload, created_at FROM interactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var out []*domain.Interaction
	for rows.Next() {
		in := &domain.Interaction{}
		var payload string
		if err := rows.Scan(&in.ID, &in.UserID, &in.UserEmail, &in.Action, &payload, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.Payload = []byte(payload)
		out = append(out, in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return out, nil
}

// Clear deletes every interaction and reports how many were removed.
func (s *InteractionStore) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM interactions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear interactions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
