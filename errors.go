package binningfilter

import "errors"

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("binning-filter: invalid configuration")

	// ErrResizeUnsupported is returned when resize is requested with an
	// algorithm other than independent-channel binning.
	ErrResizeUnsupported = errors.New("binning-filter: resize requires the independent algorithm")

	// ErrInvalidFrame is returned for buffers whose geometry does not match
	// their data.
	ErrInvalidFrame = errors.New("binning-filter: invalid frame buffer")

	// ErrFormatUnresolved is returned when the negotiated stream format does
	// not carry usable width, height or pixel layout.
	ErrFormatUnresolved = errors.New("binning-filter: stream format unresolved")
)
