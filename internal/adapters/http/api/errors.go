package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrBadSession = errors.New("session must be a positive integer or \"latest\"")
)
