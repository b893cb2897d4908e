package email

import "errors"

var (
	// ErrDisabled is returned by Send when outbound mail is switched off.
	ErrDisabled       = errors.New("email is disabled")
	ErrInvalidMessage = errors.New("invalid email message")
)
