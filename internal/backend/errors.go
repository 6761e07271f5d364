package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no API base URL is set.
	ErrNotConfigured = errors.New("API base URL not set")

	// ErrTransport wraps network-level failures: DNS, refused connections,
	// timeouts and cancelled requests.
	ErrTransport = errors.New("transport error")

	// ErrMalformedResponse marks bodies that are not JSON or lack the
	// "data" envelope.
	ErrMalformedResponse = errors.New("malformed response")

	errInvalidStructure = fmt.Errorf("%w: Invalid API response structure", ErrMalformedResponse)
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}
