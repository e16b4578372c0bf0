package api

import (
	"errors"
	"fmt"
)

// ErrAuthRequired marks a missing or rejected credential. Fatal to the
// current operation; never retried by this core.
var ErrAuthRequired = errors.New("auth required")

// UnreachableError wraps a transport failure or timeout. Sends hitting
// it go to the outbox, read-marks to the pending-op ledger.
type UnreachableError struct {
	Op  string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// ServerError is a 5xx response. Retryable like Unreachable.
type ServerError struct {
	Op     string
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: server error %d", e.Op, e.Status)
}

// IsUnreachable reports whether err is a transport failure or timeout.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// IsRetryable reports whether err should feed the outbox or the
// pending-op ledger rather than surface to the caller.
func IsRetryable(err error) bool {
	var se *ServerError
	return IsUnreachable(err) || errors.As(err, &se)
}
