package api

import (
	"errors"
	"fmt"
)

// ServerError is a failure reported by the backend: a non-2xx status or an
// error payload. Message is empty when the backend supplied no text.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// TransportError is a failure to reach the backend or to read its reply.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ServerMessage returns the backend-supplied text of a *ServerError, or ""
// for any other error.
func ServerMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
