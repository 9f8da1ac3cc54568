package speech

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAudio is returned when the synthesis service responds without
	// audio data.
	ErrNoAudio = errors.New("speech: no audio in response")

	// ErrUnknownFormat is returned for an unrecognized audio format.
	ErrUnknownFormat = errors.New("speech: unknown audio format")
)

// APIError represents an error response from a speech service endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("speech [%s]: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsServerError returns true for a server-side failure (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
