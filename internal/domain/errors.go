package domain

import "errors"

// InactiveMessage is shown to an actor whose profile has been deactivated.
const InactiveMessage = "Your account is deactivated. Contact an admin."

var (
	// ErrRemoteUnavailable marks a failed read from remote persistence. Callers
	// must treat the data as unknown, not empty.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrPersistenceFailed marks a failed reconciliation write. It is logged only.
	ErrPersistenceFailed = errors.New("persistence failed")

	ErrUnauthorized = errors.New("not signed in")
	ErrInactive     = errors.New("account is deactivated")
	ErrForbidden    = errors.New("admins only")
	ErrNotFound     = errors.New("not found")
	ErrInvalidRole  = errors.New("invalid role")
	ErrEmailTaken   = errors.New("email already registered")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid input")
)
