package aquarium

import "errors"

// Domain errors for the aquarium package.
var (
	// ErrSensorNotFound is returned when no sensor row has the requested type.
	ErrSensorNotFound = errors.New("aquarium: sensor not found")

	// ErrDeviceNotFound is returned when no device row has the requested name.
	ErrDeviceNotFound = errors.New("aquarium: device not found")

	// ErrInvalidStatus is returned for a device status other than on/off.
	ErrInvalidStatus = errors.New("aquarium: invalid device status")
)
