package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/session"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// authed resolves the bearer token before next runs. Unauthenticated and
// inactive actors never reach next.
func (s *Server) authed(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.gate.Resolve(r.Context(), bearerToken(r))
		if err != nil {
			s.metrics.ObserveAuthFailure(authFailureReason(err))
			s.writeError(w, r, err)
			return
		}
		next(w, r, sess)
	})
}

func (s *Server) adminOnly(next sessionHandler) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if !sess.CanAdmin() {
			s.metrics.ObserveAuthFailure("forbidden")
			s.writeError(w, r, domain.ErrForbidden)
			return
		}
		next(w, r, sess)
	})
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInactive):
		return "inactive"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
