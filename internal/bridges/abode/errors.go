package abode

import "errors"

var (
	// ErrInvalidTopic is returned for a command topic without a device id.
	ErrInvalidTopic = errors.New("bridge: invalid command topic")

	// ErrMissingDependency is returned by NewBridge when a required option is nil.
	ErrMissingDependency = errors.New("bridge: missing dependency")
)
