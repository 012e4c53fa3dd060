package binning

// Params are the per-frame kernel settings in physical channel order.
type Params struct {
	BinSize int
	Black   [3]int
	Gain    [3]float64
}

// NewParams converts contrast percentages into gains. A contrast of -1
// selects averaging: the gain becomes 1/N².
func NewParams(binSize int, black, contrast [3]int) Params {
	p := Params{BinSize: binSize, Black: black}
	for c := 0; c < 3; c++ {
		if contrast[c] < 0 {
			p.Gain[c] = 1.0 / float64(binSize*binSize)
		} else {
			p.Gain[c] = float64(contrast[c]) / 100.0
		}
	}
	return p
}

// Identity reports whether a 1×1 pass would leave every pixel unchanged
// without touching the buffer.
func (p Params) Identity() bool {
	return p.BinSize == 1 &&
		p.Gain == [3]float64{1, 1, 1} &&
		p.Black == [3]int{0, 0, 0}
}

func (p Params) validate() error {
	if p.BinSize < 1 || p.BinSize > MaxBinSize {
		return ErrBadBinSize
	}
	return nil
}
