package connect

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// ErrNotFound matches errors for connectors that do not exist.
var ErrNotFound = errors.New("connector not found")

// Error describes a failed Kafka Connect call. StatusCode is zero when no response was received.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("kafka connect %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("kafka connect %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap returns the transport error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a 404 from Kafka Connect.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether retrying err may succeed: transport failures,
// 5xx responses, 409 while a rebalance is in progress and an open circuit.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	switch {
	case ce.StatusCode == 0:
		return ce.Err != nil
	case ce.StatusCode == http.StatusConflict:
		return true
	case ce.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}
