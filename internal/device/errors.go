package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device does not exist in the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrDuplicateTopic is returned when a device topic is already registered.
	ErrDuplicateTopic = errors.New("device: topic already registered")
)
