package framedump

import "fmt"

// Diff summarises how two frames differ.
type Diff struct {
	// MaxAbs is the largest per-byte absolute difference
	MaxAbs int
	// Differing is the number of bytes that differ at all
	Differing int
	// Total is the number of bytes compared
	Total int
}

// Within reports whether every byte differs by at most tol.
func (d Diff) Within(tol int) bool {
	return d.MaxAbs <= tol
}

// Compare diffs two frames of identical geometry and channel order.
func Compare(a, b Frame) (Diff, error) {
	if a.Width != b.Width || a.Height != b.Height {
		return Diff{}, fmt.Errorf("framedump: size mismatch %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	if a.Order != b.Order {
		return Diff{}, fmt.Errorf("framedump: channel order mismatch %s vs %s", a.Order, b.Order)
	}
	if len(a.Data) != len(b.Data) {
		return Diff{}, fmt.Errorf("framedump: length mismatch %d vs %d", len(a.Data), len(b.Data))
	}

	d := Diff{Total: len(a.Data)}
	for i := range a.Data {
		v := int(a.Data[i]) - int(b.Data[i])
		if v < 0 {
			v = -v
		}
		if v != 0 {
			d.Differing++
			if v > d.MaxAbs {
				d.MaxAbs = v
			}
		}
	}
	return d, nil
}
