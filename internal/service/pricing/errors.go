package pricing

import "errors"

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrRateNotSet           = errors.New("professional has not set an hourly rate")
	ErrInvalidDuration      = errors.New("duration must be between 0.01 and 9999.99 hours with at most two decimals")
	ErrInvalidPercentage    = errors.New("percentage must be between 0 and 100")
	ErrForbidden            = errors.New("forbidden")
)
