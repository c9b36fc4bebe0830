package model

import "errors"

// Chain query failures that belong to the provider's failover handling.
// Adapters wrap these so callers can recognise the category with errors.Is.
var (
	ErrRateLimited        = errors.New("chain endpoint rate limited")
	ErrEndpointsExhausted = errors.New("all chain endpoints exhausted")
	ErrNotFound           = errors.New("not found")
)
