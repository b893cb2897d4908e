package payment

import "errors"

var (
	ErrNotFound      = errors.New("payment not found")
	ErrForbidden     = errors.New("not allowed to act on this payment")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("payment already exists for appointment")
	// ErrStatusConflict means the payment is not in a state the requested
	// transition can start from.
	ErrStatusConflict = errors.New("payment status does not allow this action")
	ErrDisputeExists  = errors.New("an open dispute already exists for this payment")
	ErrUpstream       = errors.New("payment processor unavailable")
	// ErrPayoutAccountMissing is an upstream error: the professional cannot
	// receive funds yet.
	ErrPayoutAccountMissing = errors.New("professional has no payout account")
)
