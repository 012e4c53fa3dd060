// Package binning implements the N×N pixel-block reduction kernels.
//
// All kernels work in place on packed 3-byte pixels and address the bytes of
// each pixel as physical channels 0, 1 and 2 (B, G, R for BGR buffers). The
// caller maps logical R/G/B settings onto physical channels before building
// Params; see NewParams.
//
// Windows are anchored at the top-left pixel and read only pixels to the
// right and below, so the kernels MUST run in raster order: every pixel a
// window reads has not yet been overwritten.
package binning

import "errors"

// MaxBinSize is the largest supported window edge.
const MaxBinSize = 7

// BytesPerPixel is fixed for the packed RGB/BGR layouts the kernels accept.
const BytesPerPixel = 3

var (
	// ErrBadGeometry is returned when an Image does not describe its buffer.
	ErrBadGeometry = errors.New("binning: invalid image geometry")

	// ErrBadBinSize is returned for window edges outside 1..MaxBinSize.
	ErrBadBinSize = errors.New("binning: bin size out of range")
)

// Image is a mutable view over a packed 3-byte-per-pixel raster.
type Image struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// Validate checks that the geometry is consistent with the buffer.
func (img Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return ErrBadGeometry
	}
	if img.Stride != img.Width*BytesPerPixel {
		return ErrBadGeometry
	}
	if len(img.Pix) < img.Stride*img.Height {
		return ErrBadGeometry
	}
	return nil
}

// level subtracts the black level and clamps to a valid table index.
func level(v uint8, black int) int {
	l := int(v) - black
	if l < 0 {
		return 0
	}
	if l > 255 {
		return 255
	}
	return l
}

// toByte clamps to 0..255 and truncates.
func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
