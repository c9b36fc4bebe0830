package scoring

import "errors"

var (
	// ErrUnknownWeight is returned for a configured weight name that matches no component.
	ErrUnknownWeight = errors.New("unknown score weight")
	// ErrNoSession is returned when the current session cannot be read.
	ErrNoSession = errors.New("current session unavailable")
)
