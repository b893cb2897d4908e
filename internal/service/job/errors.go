package job

import "errors"

var (
	ErrNotFound       = errors.New("job not found")
	ErrForbidden      = errors.New("not allowed to act on this job")
	ErrInvalidInput   = errors.New("invalid job request")
	ErrAlreadyApplied = errors.New("already applied to this job")
	// ErrInvalidState means the job or application has moved on, for
	// example the job is no longer open.
	ErrInvalidState = errors.New("job status does not allow this action")
)
