package device

import "errors"

// Domain errors for the device package.
var (
	// ErrUnknownDevice is returned when a command targets a device that was
	// never discovered.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrUnsupported is returned when building a model for an unsupported record.
	ErrUnsupported = errors.New("device: unsupported device type")

	// ErrInvalidCommand is returned when a command does not apply to the
	// device's kind or carries an unusable value.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrCancelled is returned to debounced callers whose pending call was
	// dropped before it ran, as happens at shutdown.
	ErrCancelled = errors.New("device: pending call cancelled")
)
