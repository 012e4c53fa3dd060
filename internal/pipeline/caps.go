package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// Caps errors. The caller treats all of them as an unresolved format and
// passes the buffer through.
var (
	ErrCapsUnset   = errors.New("caps not negotiated")
	ErrCapsFields  = errors.New("caps missing width/height/format")
	ErrCapsFormat  = errors.New("unsupported pixel format")
	ErrShortBuffer = errors.New("buffer smaller than caps geometry")
	ErrNotWritable = errors.New("buffer not writable")
)

// Format is the negotiated geometry of a raw video buffer.
type Format struct {
	Name   string // BGR or RGB
	Width  int
	Height int
	Stride int // bytes per row, 4-byte aligned as GStreamer lays out packed RGB
}

// Size returns the minimum byte length of a buffer with this format.
func (f Format) Size() int {
	if f.Height == 0 {
		return 0
	}
	return f.Stride*(f.Height-1) + f.Width*3
}

// structure is the subset of *gst.Structure used by caps parsing.
type structure interface {
	Name() string
	GetValue(field string) (interface{}, error)
}

// ParseCaps resolves the format of negotiated caps. nil or empty caps mean
// negotiation has not completed.
func ParseCaps(caps *gst.Caps) (Format, error) {
	if caps == nil || caps.GetSize() == 0 {
		return Format{}, ErrCapsUnset
	}
	st := caps.GetStructureAt(0)
	if st == nil {
		return Format{}, ErrCapsUnset
	}
	return parseStructure(st)
}

func parseStructure(s structure) (Format, error) {
	if s == nil || s.Name() != "video/x-raw" {
		return Format{}, ErrCapsUnset
	}

	width, okW := intField(s, "width")
	height, okH := intField(s, "height")
	name, okF := stringField(s, "format")
	if !okW || !okH || !okF {
		return Format{}, ErrCapsFields
	}
	if width <= 0 || height <= 0 {
		return Format{}, fmt.Errorf("%w: %dx%d", ErrCapsFields, width, height)
	}

	name = strings.ToUpper(name)
	if name != "BGR" && name != "RGB" {
		return Format{}, fmt.Errorf("%w: %s", ErrCapsFormat, name)
	}

	return Format{
		Name:   name,
		Width:  width,
		Height: height,
		Stride: (width*3 + 3) &^ 3,
	}, nil
}

func intField(s structure, field string) (int, bool) {
	val, err := s.GetValue(field)
	if err != nil {
		return 0, false
	}
	v, ok := val.(int)
	return v, ok
}

func stringField(s structure, field string) (string, bool) {
	val, err := s.GetValue(field)
	if err != nil {
		return "", false
	}
	v, ok := val.(string)
	return v, ok
}

// Pack copies the visible width*height region of a strided buffer into a
// tightly packed slice.
func Pack(data []byte, f Format, width, height int) []byte {
	row := width * 3
	out := make([]byte, row*height)
	for y := 0; y < height; y++ {
		copy(out[y*row:(y+1)*row], data[y*f.Stride:y*f.Stride+row])
	}
	return out
}
