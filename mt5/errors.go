package mt5

import (
	"errors"
	"fmt"
)

// Sentinel categories for gateway failures. Callers branch on these with
// errors.Is; APIError carries the raw status and body for logging.
var (
	ErrUnauthorized = errors.New("mt5: unauthorized")
	ErrNotFound     = errors.New("mt5: not found")
	ErrRateLimited  = errors.New("mt5: rate limited by gateway")
	ErrUnavailable  = errors.New("mt5: gateway unavailable")
	ErrBadRequest   = errors.New("mt5: bad request")
)

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mt5: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is maps status codes onto the sentinel categories.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrRateLimited:
		return e.StatusCode == 429
	case ErrUnavailable:
		return e.StatusCode >= 500
	case ErrBadRequest:
		return e.StatusCode >= 400 && e.StatusCode < 500 &&
			e.StatusCode != 401 && e.StatusCode != 403 &&
			e.StatusCode != 404 && e.StatusCode != 429
	}
	return false
}

// Retryable reports whether the request may be retried. Client errors other
// than 429 are never retried.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// network level failures are retryable
	return err != nil
}
