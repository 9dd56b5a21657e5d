package github

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// RateLimitError is returned when the API quota is exhausted and waiting for the reset
// would take longer than Options.MaxWait.
type RateLimitError struct {
	// Reset is the moment when the quota is restored.
	Reset time.Time
	// Wait is how long the client would have to sleep.
	Wait time.Duration
	// Secondary is true for the abuse detection limits which are not reflected in the quota.
	Secondary bool
}

func (e *RateLimitError) Error() string {
	kind := "primary"
	if e.Secondary {
		kind = "secondary"
	}
	return fmt.Sprintf("GitHub %s rate limit exceeded, resets at %s (in %s)",
		kind, e.Reset.Format(time.RFC3339), e.Wait.Round(time.Second))
}

// NotFoundError is returned for 404 and 410 responses.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.URL)
}

// HTTPError is any other unsuccessful response.
type HTTPError struct {
	Method  string
	URL     string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Message)
}

// IsNotFound checks whether the error, possibly wrapped, is NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// IsRateLimit checks whether the error, possibly wrapped, is RateLimitError.
func IsRateLimit(err error) bool {
	_, ok := errors.Cause(err).(*RateLimitError)
	return ok
}
