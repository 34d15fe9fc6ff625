package stripe

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no secret key is set. Callers map it
// to a 503 before any upstream call is attempted.
var ErrNotConfigured = errors.New("stripe_not_configured")

// APIError is a decoded Stripe API error response.
type APIError struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %s (status %d)", e.Message, e.Status)
}
