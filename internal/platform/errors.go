package platform

import "errors"

var (
	// ErrNotInitialised is returned by operations that need a completed Init.
	ErrNotInitialised = errors.New("platform: not initialised")

	// ErrAlreadyInitialised is returned when Init is called twice.
	ErrAlreadyInitialised = errors.New("platform: already initialised")
)
