package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/pullsheet/internal/domain"
)

const (
	// ListLimit caps the admin log view.
	ListLimit = 1000
	// ExportLimit caps a CSV export.
	ExportLimit = 5000
)

// Repository is the subset of store.InteractionStore that the audit service requires.
type Repository interface {
	Append(ctx context.Context, in *domain.Interaction) error
	List(ctx context.Context, email, action string, limit int) ([]*domain.Interaction, error)
	Clear(ctx context.Context) (int64, error)
}

// Publisher fans an appended entry out to other systems.
type Publisher interface {
	Publish(ctx context.Context, in *domain.Interaction) error
}

// Archiver stores an export outside the database and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) (string, error)
}

type Filter struct {
	Email  string
	Action string
	Limit  int
}

type Options struct {
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
	// OnRecord is called with the action of every entry written.
	OnRecord func(action string)
}

type Service struct {
	repo Repository
	opts Options
}

func NewService(repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, opts: opts}
}

// Record appends one entry. payload is encoded as JSON; nil becomes {}.
func (s *Service) Record(ctx context.Context, actor domain.Actor, action string, payload any) error {
	data := []byte("{}")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		data = encoded
	}

	in := &domain.Interaction{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		UserEmail: actor.Email,
		Action:    action,
		Payload:   data,
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.repo.Append(ctx, in); err != nil {
		return fmt.Errorf("failed to record %s: %w", action, err)
	}
	if s.opts.OnRecord != nil {
		s.opts.OnRecord(action)
	}

	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.Publish(ctx, in); err != nil {
			s.opts.Logger.Warn("failed to publish audit event", "action", action, "error", err)
		}
	}
	return nil
}

// List returns entries newest first. A zero or oversized limit means ListLimit.
func (s *Service) List(ctx context.Context, f Filter) ([]*domain.Interaction, error) {
	limit := f.Limit
	if limit <= 0 || limit > ListLimit {
		limit = ListLimit
	}
	rows, err := s.repo.List(ctx, f.Email, f.Action, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	return rows, nil
}

func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.opts.Logger.Info("audit log cleared", "rows", n)
	return n, nil
}

// Export writes the newest ExportLimit entries as CSV and returns the row count.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.repo.List(ctx, "", "", ExportLimit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	if err := WriteCSV(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ArchiveKey names an archived export by its creation time.
func ArchiveKey(at time.Time) string {
	return "audit/logs-" + at.UTC().Format("20060102T150405Z") + ".csv"
}

// Archive exports the log and hands it to a. It returns the archive location
// and row count.
func (s *Service) Archive(ctx context.Context, a Archiver) (string, int, error) {
	var buf bytes.Buffer
	n, err := s.Export(ctx, &buf)
	if err != nil {
		return "", 0, err
	}
	loc, err := a.Archive(ctx, ArchiveKey(s.opts.Now()), buf.Bytes())
	if err != nil {
		return "", 0, fmt.Errorf("failed to archive audit log: %w", err)
	}
	s.opts.Logger.Info("audit log archived", "location", loc, "rows", n)
	return loc, n, nil
}
