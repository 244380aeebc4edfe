package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown to the scheduler
	// or the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when an operation requires a live job but
	// the job has already reached a terminal status.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrJobActive is returned when an operation requires a terminal job
	// but the job is still pending or processing.
	ErrJobActive = errors.New("job is still active")

	// ErrExecutionTimeout marks an executor attempt that lost the race
	// against the per-job timeout. Treated exactly like an executor failure.
	ErrExecutionTimeout = errors.New("job execution timed out")
)

// RetryableError wraps an attempt failure that still has retry budget left.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
