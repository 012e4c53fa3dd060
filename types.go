package binningfilter

import (
	"fmt"
	"strings"
	"time"
)

// ChannelOrder is the byte order of a packed 3-byte pixel.
type ChannelOrder int

const (
	// OrderBGR stores blue, green, red. This is the filter's native layout.
	OrderBGR ChannelOrder = iota
	// OrderRGB stores red, green, blue.
	OrderRGB
)

// String returns the GStreamer format name.
func (o ChannelOrder) String() string {
	switch o {
	case OrderBGR:
		return "BGR"
	case OrderRGB:
		return "RGB"
	default:
		return "unknown"
	}
}

// ParseChannelOrder maps a GStreamer video/x-raw format string to an order.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BGR":
		return OrderBGR, nil
	case "RGB":
		return OrderRGB, nil
	default:
		return 0, fmt.Errorf("%w: unsupported format %q (want BGR or RGB)", ErrFormatUnresolved, s)
	}
}

// Algorithm selects the binning kernel.
type Algorithm int

const (
	// AlgorithmIndependent bins R, G and B separately in linear light.
	AlgorithmIndependent Algorithm = iota
	// AlgorithmChroma bins green and rebuilds R/B from colour differences.
	AlgorithmChroma
	// AlgorithmTest alternates between independent and chroma every second
	// of presentation time, for side-by-side comparison.
	AlgorithmTest
	// AlgorithmPlain bins R, G and B separately without gamma correction.
	AlgorithmPlain
)

// String returns the short name used in configuration files.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmIndependent:
		return "rgb"
	case AlgorithmChroma:
		return "chroma"
	case AlgorithmTest:
		return "test"
	case AlgorithmPlain:
		return "plain"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm accepts the short names and their long aliases.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgb", "independent":
		return AlgorithmIndependent, nil
	case "chroma", "chroma-preserving":
		return AlgorithmChroma, nil
	case "test", "alternating-test":
		return AlgorithmTest, nil
	case "plain":
		return AlgorithmPlain, nil
	default:
		return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// FrameBuffer is one mutable video frame handed to the engine by the host.
// The engine writes results into Data and never reallocates it.
type FrameBuffer struct {
	// Data holds Height rows of Stride bytes
	Data []byte
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Stride is the row length in bytes; must be Width*3
	Stride int
	// Order is the channel layout of each pixel
	Order ChannelOrder
	// PTS is the presentation timestamp; negative when unknown
	PTS time.Duration
	// Seq is the host's frame counter
	Seq uint64
	// TraceID correlates log lines for one frame
	TraceID string
}

// Validate checks buffer geometry.
func (f *FrameBuffer) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if f.Stride != f.Width*3 {
		return fmt.Errorf("%w: stride %d, want %d", ErrInvalidFrame, f.Stride, f.Width*3)
	}
	if len(f.Data) < f.Stride*f.Height {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidFrame, len(f.Data), f.Stride*f.Height)
	}
	if f.Order != OrderBGR && f.Order != OrderRGB {
		return fmt.Errorf("%w: channel order %d", ErrInvalidFrame, int(f.Order))
	}
	return nil
}

// Result describes what the engine did with one frame.
type Result struct {
	// Algorithm is the kernel that ran; for test mode, the one chosen for
	// this frame
	Algorithm Algorithm
	// Width and Height are the logical output extent (smaller than the
	// input only in resize mode)
	Width  int
	Height int
	// Skipped is true when the settings were a no-op and the buffer was
	// left untouched
	Skipped bool
	// Duration is the time spent in the kernel
	Duration time.Duration
}

// Stats is a snapshot of engine telemetry.
type Stats struct {
	Algorithm string
	BinSize   int
	Resize    bool

	FramesProcessed uint64
	FramesSkipped   uint64
	Independent     uint64
	Chroma          uint64
	Plain           uint64
	Resized         uint64
	FrameErrors     uint64
	FormatErrors    uint64

	LatencyMeanMS float64
	LatencyP95MS  float64
	LatencyMaxMS  float64

	Uptime time.Duration
}
