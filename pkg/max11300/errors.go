package max11300

import "errors"

var (
	// ErrDeviceNotFound is returned by Initialize when the device ID register does not
	// hold ExpectedDeviceID. No writes are issued in that case.
	ErrDeviceNotFound = errors.New("max11300: device not found")

	// ErrInvalidChannel is returned when a channel, mode or sensor is out of range.
	// The operation is skipped without touching the bus.
	ErrInvalidChannel = errors.New("max11300: invalid channel or mode")

	// ErrTransport wraps any failure of the underlying Bus.
	ErrTransport = errors.New("max11300: spi transfer failed")

	// ErrPartialConfiguration is returned when bring-up fails after the identity check.
	// Earlier writes are not rolled back; the device must be reset or abandoned.
	ErrPartialConfiguration = errors.New("max11300: device partially configured")
)
