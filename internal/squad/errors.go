package squad

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoSuchEntity is returned when a lookup by slug or version matches
// nothing. IsNotFound also reports true for it.
var ErrNoSuchEntity = errors.New("no such entity")

// APIError represents an error status returned by the SQUAD API.
// Callers should prefer the predicate functions (IsNotFound, IsUnauthorized)
// to inspect errors rather than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.detail)
}

func newAPIError(operation string, statusCode int, detail string) *APIError {
	return &APIError{operation: operation, statusCode: statusCode, detail: detail}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Detail returns the "detail" message from the response, or the raw body.
func (e *APIError) Detail() string { return e.detail }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is a 404 from the API or an empty lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSuchEntity) || HasStatusCode(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}
