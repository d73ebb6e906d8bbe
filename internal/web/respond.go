package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/service"
)

const maxBodyBytes = 1 << 16

// unavailableMessage is shown when remote persistence cannot be read. The
// client keeps working and may retry.
const unavailableMessage = "Could not reach the server. Please try again."

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent, so an encode error has nowhere to go.
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// statusFor maps a service error onto an HTTP status and the message the
// client may show.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInactive):
		return http.StatusForbidden, domain.InactiveMessage
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Please sign in."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Admins only"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "That email is already registered."
	case errors.Is(err, service.ErrArchiveDisabled):
		return http.StatusNotImplemented, "Log archival is not configured."
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable, unavailableMessage
	default:
		return http.StatusInternalServerError, "Something went wrong."
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
