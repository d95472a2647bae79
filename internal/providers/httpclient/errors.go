package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotConfigured = errors.New("provider_not_configured")
	ErrNotFound      = errors.New("provider_resource_not_found")
)

// Error is returned for any failed collaborator call. It satisfies the
// Downstream() contract used by scheduler error classification.
type Error struct {
	Provider   string
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s %s: status %d: %s", e.Provider, e.Method, e.Path, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s %s: %v", e.Provider, e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %s", e.Provider, e.Method, e.Path, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func (e *Error) Downstream() bool { return true }

// Retryable reports transport errors, throttling and 5xx responses.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, ErrCircuitOpen)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// countsAsFailure reports whether the breaker should record this error.
func (e *Error) countsAsFailure() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError
}

// IsUnavailable reports whether err came from an open circuit.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
