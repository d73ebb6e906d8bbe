package session

import (
	"github.com/vbonduro/pullsheet/internal/domain"
)

type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the explicit context object handed to every component that
// needs the actor's identity.
type Session struct {
	Token  string       `json:"-"`
	State  State        `json:"-"`
	Actor  domain.Actor `json:"actor"`
	Active bool         `json:"active"`
}

// CanAdmin reports whether admin-only views may be shown.
func (s *Session) CanAdmin() bool {
	if s == nil || s.State != Authenticated || !s.Active {
		return false
	}
	switch s.Actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return false
	default:
		return false
	}
}
