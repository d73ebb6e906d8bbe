package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vbonduro/pullsheet/internal/db"
	"github.com/vbonduro/pullsheet/internal/domain"
)

type ProfileStore struct {
	db *db.DB
}

func NewProfileStore(d *db.DB) *ProfileStore {
	return &ProfileStore{db: d}
}

func (s *ProfileStore) Create(ctx context.Context, p *domain.Profile) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO profiles (id, email, display_name, role, active, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), p.ID, strings.ToLower(p.Email), p.DisplayName, p.Role.String(), p.Active, p.PasswordHash, p.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create profile: %w", domain.ErrEmailTaken)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// FetchProfile returns (nil, nil) when the profile does not exist.
func (s *ProfileStore) FetchProfile(ctx context.Context, id string) (*domain.Profile, error) {
	return s.getOne(ctx, `WHERE id = ?`, id)
}

func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return s.getOne(ctx, `WHERE email = ?`, strings.ToLower(email))
}

func (s *ProfileStore) getOne(ctx context.Context, where string, arg any) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, email, display_name, role, active, password_hash, created_at FROM profiles `+where), arg)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every profile, newest first.
func (s *ProfileStore) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, role, active, password_hash, created_at FROM profiles
		ORDER BY created_at DESC, email ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// ListEmails returns every profile email in ascending order.
func (s *ProfileStore) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM profiles ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return emails, nil
}

// Profile fields an admin may change through SetProfileField.
const (
	FieldActive      = "active"
	FieldRole        = "role"
	FieldDisplayName = "display_name"
)

// SetProfileField updates one whitelisted column.
func (s *ProfileStore) SetProfileField(ctx context.Context, id, field string, value any) error {
	switch field {
	case FieldActive:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %s expects a bool, got %T", field, value)
		}
	case FieldRole:
		r, ok := value.(domain.Role)
		if !ok {
			return fmt.Errorf("field %s expects a role, got %T", field, value)
		}
		value = r.String()
	case FieldDisplayName:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field %s expects a string, got %T", field, value)
		}
	default:
		return fmt.Errorf("unknown profile field %q", field)
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE profiles SET `+field+` = ? WHERE id = ?`), value, id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Claim sets credentials on a profile that was created by an invite.
func (s *ProfileStore) Claim(ctx context.Context, id, displayName, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE profiles SET display_name = ?, password_hash = ? WHERE id = ? AND password_hash = ''
	`), displayName, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to claim profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("failed to claim profile: %w", domain.ErrEmailTaken)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (*domain.Profile, error) {
	p := &domain.Profile{}
	var role string
	if err := r.Scan(&p.ID, &p.Email, &p.DisplayName, &role, &p.Active, &p.PasswordHash, &p.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}
	p.Role = parsed
	return p, nil
}

// isUniqueViolation recognises duplicate-key errors from both SQLite and Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
