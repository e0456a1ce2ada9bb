package homekit

import "errors"

var (
	// ErrServing is returned by Register once Serve has started.
	ErrServing = errors.New("homekit: accessories are fixed once serving")

	// ErrInvalidPin is returned by Serve for a pin that is not 8 digits.
	ErrInvalidPin = errors.New("homekit: pin must be 8 digits")
)
