package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/pullsheet/internal/domain"
)

const minPasswordLen = 6

// ProfileRepository is the subset of store.ProfileStore that the gate requires.
type ProfileRepository interface {
	FetchProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	Create(ctx context.Context, p *domain.Profile) error
	Claim(ctx context.Context, id, displayName, passwordHash string) error
}

// TokenRepository is the subset of store.SessionStore that the gate requires.
type TokenRepository interface {
	Create(ctx context.Context, token, userID string, at time.Time) error
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// Auditor records sign-in and sign-out.
type Auditor interface {
	Record(ctx context.Context, actor domain.Actor, action string, payload any) error
}

type Options struct {
	BcryptCost int
	Now        func() time.Time
	Logger     *slog.Logger
	// OnSignOut runs after every session of a user ends, voluntarily or forced.
	OnSignOut func(userID string)
}

// Gate authenticates actors and resolves bearer tokens into sessions. Nothing
// downstream of the gate runs for an unauthenticated or inactive actor.
type Gate struct {
	profiles ProfileRepository
	tokens   TokenRepository
	audit    Auditor
	opts     Options
}

func NewGate(profiles ProfileRepository, tokens TokenRepository, audit Auditor, opts Options) *Gate {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gate{profiles: profiles, tokens: tokens, audit: audit, opts: opts}
}

// Resolve turns a bearer token into an authenticated session.
//
// It returns domain.ErrUnauthorized for a missing or unknown token,
// domain.ErrInactive after forcing a deactivated actor out, and
// domain.ErrRemoteUnavailable when identity cannot be checked.
func (g *Gate) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	userID, err := g.tokens.Lookup(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	s := &Session{Token: token, State: Authenticating}
	g.opts.Logger.Debug("resolving session", "user_id", userID, "state", s.State.String())

	profile, err := g.profiles.FetchProfile(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrInvalidRole):
		g.opts.Logger.Error("profile has an invalid role, signing out", "user_id", userID, "error", err)
		g.revoke(ctx, userID)
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	case profile == nil:
		g.revoke(ctx, userID)
		return nil, domain.ErrUnauthorized
	case !profile.Active:
		g.opts.Logger.Info("inactive profile, forcing sign-out", "user_id", userID)
		g.revoke(ctx, userID)
		return nil, domain.ErrInactive
	}

	s.State = Authenticated
	s.Active = true
	s.Actor = profile.Actor()
	return s, nil
}

// SignUp registers a new actor, or sets credentials on a profile an admin
// invited by email, and signs them in.
func (g *Gate) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email address", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := g.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}

	var profile *domain.Profile
	if existing != nil {
		if existing.PasswordHash != "" {
			return nil, domain.ErrEmailTaken
		}
		if displayName == "" {
			displayName = existing.DisplayName
		}
		if err := g.profiles.Claim(ctx, existing.ID, displayName, string(hash)); err != nil {
			return nil, err
		}
		existing.DisplayName = displayName
		existing.PasswordHash = string(hash)
		profile = existing
	} else {
		profile = &domain.Profile{
			ID:           uuid.NewString(),
			Email:        email,
			DisplayName:  displayName,
			Role:         domain.RoleUser,
			Active:       true,
			PasswordHash: string(hash),
			CreatedAt:    g.opts.Now(),
		}
		if err := g.profiles.Create(ctx, profile); err != nil {
			return nil, err
		}
	}

	if !profile.Active {
		return nil, domain.ErrInactive
	}
	return g.start(ctx, profile)
}

// SignIn checks credentials and issues a new token. A deactivated actor never
// receives one.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*Session, error) {
	profile, err := g.profiles.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRole) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	if profile == nil || profile.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !profile.Active {
		return nil, domain.ErrInactive
	}
	return g.start(ctx, profile)
}

// SignOut revokes token. Unknown tokens are ignored.
func (g *Gate) SignOut(ctx context.Context, token string) error {
	userID, err := g.tokens.Lookup(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	if userID == "" {
		return nil
	}
	if err := g.tokens.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	profile, err := g.profiles.FetchProfile(ctx, userID)
	if err != nil {
		g.opts.Logger.Warn("failed to load profile for sign-out audit", "user_id", userID, "error", err)
	}
	if profile != nil {
		g.record(ctx, profile.Actor(), domain.ActionLogout)
	}
	if g.opts.OnSignOut != nil {
		g.opts.OnSignOut(userID)
	}
	return nil
}

// Revoke ends every session of userID, e.g. after an admin deactivates them.
func (g *Gate) Revoke(ctx context.Context, userID string) {
	g.revoke(ctx, userID)
}

func (g *Gate) start(ctx context.Context, profile *domain.Profile) (*Session, error) {
	token := uuid.NewString()
	if err := g.tokens.Create(ctx, token, profile.ID, g.opts.Now()); err != nil {
		return nil, err
	}

	s := &Session{Token: token, State: Authenticated, Active: true, Actor: profile.Actor()}
	g.record(ctx, s.Actor, domain.ActionLogin)
	return s, nil
}

func (g *Gate) revoke(ctx context.Context, userID string) {
	if err := g.tokens.DeleteByUser(ctx, userID); err != nil {
		g.opts.Logger.Error("failed to revoke sessions", "user_id", userID, "error", err)
	}
	if g.opts.OnSignOut != nil {
		g.opts.OnSignOut(userID)
	}
}

func (g *Gate) record(ctx context.Context, actor domain.Actor, action string) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(ctx, actor, action, nil); err != nil {
		g.opts.Logger.Warn("failed to audit", "action", action, "user_id", actor.ID, "error", err)
	}
}
