package chatclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by FetchConversation when the id is unknown to the
// backend. Callers treat it as a cue to create a conversation, not as a
// failure.
var ErrNotFound = errors.New("conversation not found")

// TransportError means the request never completed: no connectivity,
// timeout, or a broken connection while reading the response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError means the server was reached and rejected the request.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Message)
}

// Retryable reports whether a user-initiated retry may succeed.
func (e *ServerError) Retryable() bool {
	return e.Status >= 500
}

// ValidationError rejects local input before anything is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err is a conversation miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err is worth offering a retry for. Transport
// errors always are; server errors only for 5xx.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

// outcome labels an error for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		te *TransportError
		se *ServerError
		ve *ValidationError
	)
	switch {
	case IsNotFound(err):
		return "not_found"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &se):
		return "server_error"
	case errors.As(err, &ve):
		return "invalid"
	default:
		return "error"
	}
}
