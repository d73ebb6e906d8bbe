package web

import (
	"fmt"
	"net/http"

	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/session"
	"github.com/vbonduro/pullsheet/internal/summary"
)

// handleSummary opens the summary. Opening it is audited as send_summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sum, err := s.pull.Summary(r.Context(), sess.Actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleSummaryText renders the clipboard text for ?variant=all|pull|restock.
func (s *Server) handleSummaryText(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v, err := summary.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	text, err := s.pull.SummaryText(r.Context(), sess.Actor, v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(text)); err != nil {
		s.logger.Warn("failed to write summary text", "error", err)
	}
}
