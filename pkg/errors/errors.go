// Package errors defines the sentinel errors shared across the service.
// Call sites wrap them with fmt.Errorf("%w: ...") so the HTTP layer can map
// the category to a status code while keeping the human-readable detail.
package errors

import "errors"

var (
	// ErrNotFound covers unknown job ids and results not yet available.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState rejects lifecycle transitions such as cancelling a
	// job that already fired.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation rejects malformed request input.
	ErrValidation = errors.New("validation error")
	// ErrUnavailable signals a dependency outage.
	ErrUnavailable = errors.New("service unavailable")
	// ErrQuotaExceeded signals a client over its request budget.
	ErrQuotaExceeded = errors.New("quota exceeded")
)
