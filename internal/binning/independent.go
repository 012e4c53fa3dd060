package binning

import "github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/gamma"

// Independent bins each channel separately in linear light.
//
// For every anchor (x, y) with x <= Width-N and y <= Height-N the pixel is
// replaced by the gamma-encoded sum of the N×N window below and to the right
// of it, after black subtraction and gain. The last N-1 rows and columns are
// left as they were. A 1×1 pass with unity gain and zero black is a no-op
// that does not touch the buffer.
func Independent(img Image, p Params, t *gamma.Tables) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if p.Identity() {
		return nil
	}

	switch p.BinSize {
	case 1:
		independent1(img, p, t)
	case 2:
		independent2(img, p, t)
	case 3:
		independent3(img, p, t)
	case 4:
		independent4(img, p, t)
	default:
		independentGeneric(img, p, t)
	}
	return nil
}

func lin(fw *[gamma.InRange]float64, v uint8, black int) float64 {
	return fw[level(v, black)]
}

func independent1(img Image, p Params, t *gamma.Tables) {
	pix, fw := img.Pix, &t.Forward
	for y := 0; y < img.Height; y++ {
		row := y * img.Stride
		for x := 0; x < img.Width; x++ {
			o := row + x*BytesPerPixel
			for c := 0; c < 3; c++ {
				pix[o+c] = t.Encode(lin(fw, pix[o+c], p.Black[c]) * p.Gain[c])
			}
		}
	}
}

func independent2(img Image, p Params, t *gamma.Tables) {
	pix, fw, s := img.Pix, &t.Forward, img.Stride
	for y := 0; y <= img.Height-2; y++ {
		row := y * s
		for x := 0; x <= img.Width-2; x++ {
			o := row + x*BytesPerPixel
			for c := 0; c < 3; c++ {
				a, b := o+c, p.Black[c]
				sum := lin(fw, pix[a], b) + lin(fw, pix[a+3], b) +
					lin(fw, pix[a+s], b) + lin(fw, pix[a+s+3], b)
				pix[a] = t.Encode(sum * p.Gain[c])
			}
		}
	}
}

func independent3(img Image, p Params, t *gamma.Tables) {
	pix, fw, s := img.Pix, &t.Forward, img.Stride
	for y := 0; y <= img.Height-3; y++ {
		row := y * s
		for x := 0; x <= img.Width-3; x++ {
			o := row + x*BytesPerPixel
			for c := 0; c < 3; c++ {
				a, b := o+c, p.Black[c]
				r1, r2 := a+s, a+2*s
				sum := lin(fw, pix[a], b) + lin(fw, pix[a+3], b) + lin(fw, pix[a+6], b) +
					lin(fw, pix[r1], b) + lin(fw, pix[r1+3], b) + lin(fw, pix[r1+6], b) +
					lin(fw, pix[r2], b) + lin(fw, pix[r2+3], b) + lin(fw, pix[r2+6], b)
				pix[a] = t.Encode(sum * p.Gain[c])
			}
		}
	}
}

func independent4(img Image, p Params, t *gamma.Tables) {
	pix, fw, s := img.Pix, &t.Forward, img.Stride
	for y := 0; y <= img.Height-4; y++ {
		row := y * s
		for x := 0; x <= img.Width-4; x++ {
			o := row + x*BytesPerPixel
			for c := 0; c < 3; c++ {
				a, b := o+c, p.Black[c]
				r1, r2, r3 := a+s, a+2*s, a+3*s
				sum := lin(fw, pix[a], b) + lin(fw, pix[a+3], b) + lin(fw, pix[a+6], b) + lin(fw, pix[a+9], b) +
					lin(fw, pix[r1], b) + lin(fw, pix[r1+3], b) + lin(fw, pix[r1+6], b) + lin(fw, pix[r1+9], b) +
					lin(fw, pix[r2], b) + lin(fw, pix[r2+3], b) + lin(fw, pix[r2+6], b) + lin(fw, pix[r2+9], b) +
					lin(fw, pix[r3], b) + lin(fw, pix[r3+3], b) + lin(fw, pix[r3+6], b) + lin(fw, pix[r3+9], b)
				pix[a] = t.Encode(sum * p.Gain[c])
			}
		}
	}
}

// independentGeneric handles any window size. The unrolled kernels above
// accumulate in the same row-major order so results match bit for bit.
func independentGeneric(img Image, p Params, t *gamma.Tables) {
	n, pix, fw, s := p.BinSize, img.Pix, &t.Forward, img.Stride
	for y := 0; y <= img.Height-n; y++ {
		row := y * s
		for x := 0; x <= img.Width-n; x++ {
			o := row + x*BytesPerPixel
			var sum [3]float64
			for i := 0; i < n; i++ {
				line := o + i*s
				for j := 0; j < n; j++ {
					q := line + j*BytesPerPixel
					for c := 0; c < 3; c++ {
						sum[c] += lin(fw, pix[q+c], p.Black[c])
					}
				}
			}
			for c := 0; c < 3; c++ {
				pix[o+c] = t.Encode(sum[c] * p.Gain[c])
			}
		}
	}
}
