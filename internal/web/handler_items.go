package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/filter"
	"github.com/vbonduro/pullsheet/internal/session"
)

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request, _ *session.Session) {
	writeJSON(w, http.StatusOK, map[string][]catalog.Category{
		"categories": s.pull.Catalog().Categories(),
	})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	view, err := s.pull.Items(r.Context(), sess.Actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, s.pull.Filters(r.Context(), sess.Actor))
}

func (s *Server) handleSaveFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var st filter.State
	if err := decodeJSON(w, r, &st); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := s.pull.SaveFilters(r.Context(), sess.Actor, st)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handlePress(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	step, err := parseDir(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, err := s.pull.Press(r.Context(), sess.Actor, itemKey(r), step)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	step, err := parseDir(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, err := s.pull.Release(r.Context(), sess.Actor, itemKey(r), step)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleStep applies a single tap without starting a gesture.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	step, err := parseDir(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, err := s.pull.ApplyDelta(r.Context(), sess.Actor, itemKey(r), step)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// quantityRequest accepts the quantity as a JSON number or as the raw text of
// the input field.
type quantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Quantity) == 0 || string(req.Quantity) == "null" {
		s.writeError(w, r, fmt.Errorf("%w: quantity is required", domain.ErrInvalidInput))
		return
	}

	var (
		entry domain.LedgerEntry
		err   error
	)
	if req.Quantity[0] == '"' {
		var text string
		if err := json.Unmarshal(req.Quantity, &text); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
			return
		}
		entry, err = s.pull.SetQuantityText(r.Context(), sess.Actor, itemKey(r), text)
	} else {
		var value float64
		if err := json.Unmarshal(req.Quantity, &value); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
			return
		}
		entry, err = s.pull.SetQuantity(r.Context(), sess.Actor, itemKey(r), value)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type restockRequest struct {
	Restock *bool `json:"restock"`
}

func (s *Server) handleSetRestock(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req restockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Restock == nil {
		s.writeError(w, r, fmt.Errorf("%w: restock is required", domain.ErrInvalidInput))
		return
	}

	entry, err := s.pull.SetRestock(r.Context(), sess.Actor, itemKey(r), *req.Restock)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleClear succeeds even when the remote bulk update fails. The local list
// is already cleared and the failure is only logged.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	err := s.pull.ClearAll(r.Context(), sess.Actor)
	switch {
	case errors.Is(err, domain.ErrPersistenceFailed):
		s.logger.Warn("clear not persisted", "user_id", sess.Actor.ID, "error", err)
	case err != nil:
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func itemKey(r *http.Request) domain.ItemKey {
	return domain.ItemKey{Category: r.PathValue("category"), Item: r.PathValue("item")}
}

// parseDir maps ?dir=inc|dec onto a step of +1 or -1.
func parseDir(r *http.Request) (int, error) {
	switch dir := r.URL.Query().Get("dir"); dir {
	case "inc":
		return 1, nil
	case "dec":
		return -1, nil
	default:
		return 0, fmt.Errorf("%w: dir must be inc or dec, got %q", domain.ErrInvalidInput, dir)
	}
}
