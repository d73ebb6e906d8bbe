package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/pullsheet/internal/audit"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/session"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	f, err := logFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.admin.Dashboard(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	profiles, err := s.admin.Profiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(profiles))
}

func (s *Server) handleToggleActive(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	p, err := s.admin.ToggleActive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("admin toggled profile", "admin_id", sess.Actor.ID, "profile_id", p.ID, "active", p.Active)
	writeJSON(w, http.StatusOK, p)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.admin.SetRole(r.Context(), r.PathValue("id"), req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("admin set role", "admin_id", sess.Actor.ID, "profile_id", p.ID, "role", p.Role.String())
	writeJSON(w, http.StatusOK, p)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteResponse struct {
	Profile *domain.Profile `json:"profile"`
	Created bool            `json:"created"`
}

// handleInvite answers 201 when a placeholder profile was created and 200
// when an existing profile only had its role updated.
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleUser.String()
	}

	p, created, err := s.admin.Invite(r.Context(), req.Email, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, inviteResponse{Profile: p, Created: created})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	users, err := s.admin.Users(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	f, err := logFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logs, err := s.admin.Logs(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}

func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	var buf bytes.Buffer
	n, err := s.admin.ExportLogs(r.Context(), &buf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="logs.csv"`)
	w.Header().Set("X-Row-Count", strconv.Itoa(n))
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("failed to write log export", "error", err)
	}
}

type archiveResponse struct {
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

func (s *Server) handleArchiveLogs(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	loc, n, err := s.admin.ArchiveLogs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, archiveResponse{Location: loc, Rows: n})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	n, err := s.admin.ClearLogs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("admin cleared logs", "admin_id", sess.Actor.ID, "rows", n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// logFilter reads ?email=&action=&limit= for the log views.
func logFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		Email:  strings.TrimSpace(q.Get("email")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return audit.Filter{}, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidInput)
		}
		f.Limit = limit
	}
	return f, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
