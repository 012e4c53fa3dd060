package binningfilter

import (
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/binning"
)

const (
	// MinBinSize and MaxBinSize bound the window edge.
	MinBinSize = 1
	MaxBinSize = binning.MaxBinSize

	// MaxBlack is the largest black level.
	MaxBlack = 255

	// ContrastAverage selects averaging (gain 1/N²) instead of a fixed gain.
	ContrastAverage = -1
	// ContrastUnity is the contrast for plain summation (gain 1.0).
	ContrastUnity = 100
	// MaxContrast is the largest contrast (gain 10.0).
	MaxContrast = 1000
)

var channelNames = [3]string{"r", "g", "b"}

// RGB holds one integer per logical colour channel.
type RGB struct {
	R int `yaml:"r" json:"r"`
	G int `yaml:"g" json:"g"`
	B int `yaml:"b" json:"b"`
}

// Config is the complete filter configuration. It is a value type: the
// engine swaps whole configs between frames and never mutates one in place.
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm"`
	BinSize   int       `yaml:"binsize" json:"binsize"`
	Resize    bool      `yaml:"resize" json:"resize"`
	Black     RGB       `yaml:"black" json:"black"`
	Contrast  RGB       `yaml:"contrast" json:"contrast"`
}

// DefaultConfig returns a 1×1 independent pass with unity gain and no black
// offset, which leaves frames untouched.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmIndependent,
		BinSize:   1,
		Contrast:  RGB{R: ContrastUnity, G: ContrastUnity, B: ContrastUnity},
	}
}

// Validate rejects out-of-range settings. All errors wrap ErrInvalidConfig
// except an illegal resize, which wraps ErrResizeUnsupported.
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmIndependent, AlgorithmChroma, AlgorithmTest, AlgorithmPlain:
	default:
		return fmt.Errorf("%w: unknown algorithm %d", ErrInvalidConfig, int(c.Algorithm))
	}

	if c.BinSize < MinBinSize || c.BinSize > MaxBinSize {
		return fmt.Errorf("%w: binsize %d (must be %d-%d)", ErrInvalidConfig, c.BinSize, MinBinSize, MaxBinSize)
	}

	if c.Resize && c.Algorithm != AlgorithmIndependent {
		return fmt.Errorf("%w (algorithm %s)", ErrResizeUnsupported, c.Algorithm)
	}

	for i, v := range [3]int{c.Black.R, c.Black.G, c.Black.B} {
		if v < 0 || v > MaxBlack {
			return fmt.Errorf("%w: %sblack %d (must be 0-%d)", ErrInvalidConfig, channelNames[i], v, MaxBlack)
		}
	}

	for i, v := range [3]int{c.Contrast.R, c.Contrast.G, c.Contrast.B} {
		if v != ContrastAverage && (v < 1 || v > MaxContrast) {
			return fmt.Errorf("%w: %scontrast %d (must be -1 or 1-%d)", ErrInvalidConfig, channelNames[i], v, MaxContrast)
		}
	}

	return nil
}

// Clamp returns a copy pulled into the valid range. Negative contrasts
// become the averaging sentinel and zero becomes 1. Resize is dropped for
// algorithms that do not support it.
func (c Config) Clamp() Config {
	switch c.Algorithm {
	case AlgorithmIndependent, AlgorithmChroma, AlgorithmTest, AlgorithmPlain:
	default:
		c.Algorithm = AlgorithmIndependent
	}
	c.BinSize = clampInt(c.BinSize, MinBinSize, MaxBinSize)
	if c.Algorithm != AlgorithmIndependent {
		c.Resize = false
	}
	c.Black = RGB{
		R: clampInt(c.Black.R, 0, MaxBlack),
		G: clampInt(c.Black.G, 0, MaxBlack),
		B: clampInt(c.Black.B, 0, MaxBlack),
	}
	c.Contrast = RGB{
		R: clampContrast(c.Contrast.R),
		G: clampContrast(c.Contrast.G),
		B: clampContrast(c.Contrast.B),
	}
	return c
}

// Physical returns black and contrast indexed by physical byte position for
// the given channel order. Kernels always treat byte 0 as blue and byte 2 as
// red, so RGB buffers get their red and blue settings swapped.
func (c Config) Physical(order ChannelOrder) (black, contrast [3]int) {
	if order == OrderRGB {
		return [3]int{c.Black.R, c.Black.G, c.Black.B},
			[3]int{c.Contrast.R, c.Contrast.G, c.Contrast.B}
	}
	return [3]int{c.Black.B, c.Black.G, c.Black.R},
		[3]int{c.Contrast.B, c.Contrast.G, c.Contrast.R}
}

// Patch is a partial update. Nil fields keep the current value.
type Patch struct {
	Algorithm *Algorithm `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	BinSize   *int       `yaml:"binsize,omitempty" json:"binsize,omitempty"`
	Resize    *bool      `yaml:"resize,omitempty" json:"resize,omitempty"`
	RBlack    *int       `yaml:"rblack,omitempty" json:"rblack,omitempty"`
	GBlack    *int       `yaml:"gblack,omitempty" json:"gblack,omitempty"`
	BBlack    *int       `yaml:"bblack,omitempty" json:"bblack,omitempty"`
	RContrast *int       `yaml:"rcontrast,omitempty" json:"rcontrast,omitempty"`
	GContrast *int       `yaml:"gcontrast,omitempty" json:"gcontrast,omitempty"`
	BContrast *int       `yaml:"bcontrast,omitempty" json:"bcontrast,omitempty"`
}

// Apply returns c with every non-nil field of p applied. The result is not
// validated.
func (c Config) Apply(p Patch) Config {
	if p.Algorithm != nil {
		c.Algorithm = *p.Algorithm
	}
	if p.BinSize != nil {
		c.BinSize = *p.BinSize
	}
	if p.Resize != nil {
		c.Resize = *p.Resize
	}
	setInt(&c.Black.R, p.RBlack)
	setInt(&c.Black.G, p.GBlack)
	setInt(&c.Black.B, p.BBlack)
	setInt(&c.Contrast.R, p.RContrast)
	setInt(&c.Contrast.G, p.GContrast)
	setInt(&c.Contrast.B, p.BContrast)
	return c
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampContrast(v int) int {
	if v < 0 {
		return ContrastAverage
	}
	return clampInt(v, 1, MaxContrast)
}
