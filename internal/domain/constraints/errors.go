package constraints

import "errors"

var (
	// ErrInvalidDenom is returned when the chain reports a non-positive denomination.
	ErrInvalidDenom = errors.New("invalid chain denomination")
	// ErrUnparsableVersion marks a client version string without a semantic version.
	ErrUnparsableVersion = errors.New("unparsable client version")
)
