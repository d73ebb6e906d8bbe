package web

import (
	"net/http"

	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/session"
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type sessionResponse struct {
	Token    string       `json:"token,omitempty"`
	Actor    domain.Actor `json:"actor"`
	CanAdmin bool         `json:"can_admin"`
}

func newSessionResponse(sess *session.Session, withToken bool) sessionResponse {
	resp := sessionResponse{Actor: sess.Actor, CanAdmin: sess.CanAdmin()}
	if withToken {
		resp.Token = sess.Token
	}
	return resp
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.gate.SignUp(r.Context(), c.Email, c.Password, c.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess, true))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.gate.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		s.metrics.ObserveAuthFailure(authFailureReason(err))
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, true))
}

// handleLogout is idempotent: a missing or unknown token still succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := s.gate.SignOut(r.Context(), token); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, newSessionResponse(sess, false))
}
