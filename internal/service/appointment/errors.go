package appointment

import "errors"

var (
	ErrNotFound     = errors.New("appointment not found")
	ErrForbidden    = errors.New("not allowed to act on this appointment")
	ErrInvalidInput = errors.New("invalid appointment request")
	// ErrInvalidState means the appointment's status does not allow the
	// requested change.
	ErrInvalidState = errors.New("appointment status does not allow this action")
)
