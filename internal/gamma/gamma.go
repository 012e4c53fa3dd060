// Package gamma builds the lookup tables that move 8-bit sensor values into
// a 12-bit linear-light domain and back.
//
// The forward table adds the Rec.709 offset on decode but the inverse table
// does not subtract it on encode. A round trip is therefore NOT the identity:
// dark values are lifted and the full scale is slightly compressed.
package gamma

import "math"

const (
	// InRange is the number of 8-bit input levels.
	InRange = 256

	// OutRange is the number of linear-light levels.
	OutRange = 4096

	// Factor scales 8-bit input before the power law.
	Factor = 283.02

	// Offset is the Rec.709 decode offset.
	Offset = 0.099

	// DefaultGamma is the exponent used by the filter.
	DefaultGamma = 2.22
)

// Tables holds the forward (8-bit → linear) and inverse (linear → 8-bit)
// lookups. Immutable after Build; safe for concurrent readers.
type Tables struct {
	Gamma   float64
	Forward [InRange]float64
	Inverse [OutRange]uint8
}

// Build computes both tables for exponent g. Non-positive g falls back to
// DefaultGamma.
func Build(g float64) *Tables {
	if g <= 0 {
		g = DefaultGamma
	}

	t := &Tables{Gamma: g}

	for i := 0; i < InRange; i++ {
		t.Forward[i] = OutRange * math.Pow(float64(i)/Factor+Offset, g)
	}

	inv := 1.0 / g
	for j := 0; j < OutRange; j++ {
		v := InRange * math.Pow(float64(j)/OutRange, inv)
		if v > InRange-1 {
			v = InRange - 1
		}
		t.Inverse[j] = uint8(v)
	}

	return t
}

// Quantize maps a linear-light value onto an Inverse index.
func Quantize(v float64) int {
	r := math.Round(v)
	if r <= 0 {
		return 0
	}
	if r >= OutRange-1 {
		return OutRange - 1
	}
	return int(r)
}

// Encode converts a linear-light value back to 8 bits.
func (t *Tables) Encode(v float64) uint8 {
	return t.Inverse[Quantize(v)]
}

// RoundTrip decodes and re-encodes a single 8-bit value.
func (t *Tables) RoundTrip(v uint8) uint8 {
	return t.Encode(t.Forward[v])
}
