package protocol

import "errors"

var (
	// ErrTransport is returned when a USB transfer fails.
	ErrTransport = errors.New("usb transfer failed")
	// ErrTimeout is returned when a synchronous transfer did not complete in time.
	ErrTimeout = errors.New("usb transfer timed out")
	// ErrMalformedFrame marks data that could not be assembled into a frame.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrSizeMismatch is returned when a payload does not match a record size.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrUnsupportedFileFormat is returned for files that cannot be uploaded.
	ErrUnsupportedFileFormat = errors.New("unsupported file format")
	// ErrInvalidParameter is returned when a command argument is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMessageTooLong is returned when a message does not fit a single report.
	ErrMessageTooLong = errors.New("message too long for a single report")
)
