package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity or stored slot does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransport marks failures to complete a call: the server could not be
	// reached or its answer could not be read.
	ErrTransport = errors.New("transport failure")
	// ErrUnauthorized is returned when the server refuses the stored credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a structured failure reported by the server in a success:false body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match APIError against ErrUnauthorized and ErrNotFound by status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401
	case ErrNotFound:
		return e.StatusCode == 404
	default:
		return false
	}
}
