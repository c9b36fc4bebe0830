package chain

import "errors"

var (
	// ErrNoEndpoints is returned when no endpoint is configured.
	ErrNoEndpoints = errors.New("no chain endpoints configured")
	// ErrUnexpectedStatus wraps a non-retryable HTTP status from an endpoint.
	ErrUnexpectedStatus = errors.New("unexpected chain endpoint status")
)
