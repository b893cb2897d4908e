package user

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrForbidden            = errors.New("only professionals have a professional profile")
	ErrInvalidHourlyRate    = errors.New("hourly rate must be greater than zero")
	ErrInvalidPayoutAccount = errors.New("payout account id must look like acct_...")
	ErrNothingToUpdate      = errors.New("no profile field provided")
)
