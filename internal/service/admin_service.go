package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/pullsheet/internal/audit"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/store"
)

// ErrArchiveDisabled is returned when no archive destination is configured.
var ErrArchiveDisabled = errors.New("log archival is not configured")

// profileRepository is the subset of store.ProfileStore that AdminService requires.
type profileRepository interface {
	Create(ctx context.Context, p *domain.Profile) error
	FetchProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]*domain.Profile, error)
	ListEmails(ctx context.Context) ([]string, error)
	SetProfileField(ctx context.Context, id, field string, value any) error
}

// auditLog is the subset of audit.Service that AdminService requires.
type auditLog interface {
	List(ctx context.Context, f audit.Filter) ([]*domain.Interaction, error)
	Clear(ctx context.Context) (int64, error)
	Export(ctx context.Context, w io.Writer) (int, error)
	Archive(ctx context.Context, a audit.Archiver) (string, int, error)
}

// sessionRevoker ends every session of a user.
type sessionRevoker interface {
	Revoke(ctx context.Context, userID string)
}

type AdminService struct {
	profiles profileRepository
	audit    auditLog
	revoker  sessionRevoker
	archiver audit.Archiver
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdminService wires the admin operations. archiver may be nil.
func NewAdminService(
	profiles profileRepository,
	auditLog auditLog,
	revoker sessionRevoker,
	archiver audit.Archiver,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		profiles: profiles,
		audit:    auditLog,
		revoker:  revoker,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// Dashboard is everything the admin view shows at once.
type Dashboard struct {
	Profiles []*domain.Profile     `json:"profiles"`
	Users    []string              `json:"users"`
	Logs     []*domain.Interaction `json:"logs"`
}

// Dashboard loads profiles, the user filter list and logs concurrently.
func (s *AdminService) Dashboard(ctx context.Context, f audit.Filter) (*Dashboard, error) {
	d := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profiles, err := s.profiles.ListProfiles(gctx)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		d.Profiles = profiles
		return nil
	})
	g.Go(func() error {
		users, err := s.profiles.ListEmails(gctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		d.Users = users
		return nil
	})
	g.Go(func() error {
		logs, err := s.audit.List(gctx, f)
		if err != nil {
			return err
		}
		d.Logs = logs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	return d, nil
}

func (s *AdminService) Profiles(ctx context.Context) ([]*domain.Profile, error) {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	return profiles, nil
}

// ToggleActive flips the active flag. Deactivating signs the user out
// everywhere.
func (s *AdminService) ToggleActive(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.profiles.FetchProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}

	p.Active = !p.Active
	if err := s.profiles.SetProfileField(ctx, id, store.FieldActive, p.Active); err != nil {
		return nil, err
	}
	if !p.Active && s.revoker != nil {
		s.revoker.Revoke(ctx, id)
	}
	s.logger.Info("profile active toggled", "profile_id", id, "active", p.Active)
	return p, nil
}

// SetRole accepts only "user" or "admin".
func (s *AdminService) SetRole(ctx context.Context, id, role string) (*domain.Profile, error) {
	r, err := domain.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err := s.profiles.SetProfileField(ctx, id, store.FieldRole, r); err != nil {
		return nil, err
	}
	s.logger.Info("profile role set", "profile_id", id, "role", r.String())

	p, err := s.profiles.FetchProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	return p, nil
}

// Invite creates a placeholder profile for email so its role and active flag
// can be set before the person signs up. An existing profile only gets the
// new role. It reports whether a profile was created.
func (s *AdminService) Invite(ctx context.Context, email, role string) (*domain.Profile, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, false, fmt.Errorf("%w: email address", domain.ErrInvalidInput)
	}
	r, err := domain.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	existing, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	if existing != nil {
		if err := s.profiles.SetProfileField(ctx, existing.ID, store.FieldRole, r); err != nil {
			return nil, false, err
		}
		existing.Role = r
		return existing, false, nil
	}

	p := &domain.Profile{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.SplitN(email, "@", 2)[0],
		Role:        r,
		Active:      true,
		CreatedAt:   s.now(),
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, false, err
	}
	s.logger.Info("profile invited", "profile_id", p.ID, "role", r.String())
	return p, true, nil
}

func (s *AdminService) Logs(ctx context.Context, f audit.Filter) ([]*domain.Interaction, error) {
	return s.audit.List(ctx, f)
}

func (s *AdminService) Users(ctx context.Context) ([]string, error) {
	users, err := s.profiles.ListEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	return users, nil
}

func (s *AdminService) ExportLogs(ctx context.Context, w io.Writer) (int, error) {
	return s.audit.Export(ctx, w)
}

// ArchiveLogs uploads a CSV export and returns its location and row count.
func (s *AdminService) ArchiveLogs(ctx context.Context) (string, int, error) {
	if s.archiver == nil {
		return "", 0, ErrArchiveDisabled
	}
	return s.audit.Archive(ctx, s.archiver)
}

func (s *AdminService) ClearLogs(ctx context.Context) (int64, error) {
	return s.audit.Clear(ctx)
}
