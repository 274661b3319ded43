package upstream

import (
	"errors"
	"fmt"
)

// ErrAuthRequired means no credential is available for an authenticated
// endpoint. It never reaches the wire.
var ErrAuthRequired = errors.New("authentication required")

// NetworkError wraps a request that could not complete at all: connection
// failures, timeouts, an open circuit breaker. The remote state is unknown.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteRejection is a completed request the server answered with a 4xx or
// 5xx. Message carries the server-provided text when the body had one.
type RemoteRejection struct {
	Status  int
	Message string
}

func (e *RemoteRejection) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream rejected request (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream rejected request (%d)", e.Status)
}
