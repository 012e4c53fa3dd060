package binning

// Plain bins each channel separately on raw sensor values with no gamma
// linearisation: out = clamp((Σp - N²·black) * gain, 0, 255).
// Region, ordering and the 1×1 no-op match Independent.
func Plain(img Image, p Params) error {
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
	case 2:
		plain2(img, p)
	default:
		plainGeneric(img, p)
	}
	return nil
}

func plain2(img Image, p Params) {
	pix, s := img.Pix, img.Stride
	for y := 0; y <= img.Height-2; y++ {
		row := y * s
		for x := 0; x <= img.Width-2; x++ {
			o := row + x*BytesPerPixel
			for c := 0; c < 3; c++ {
				a := o + c
				sum := int(pix[a]) + int(pix[a+3]) + int(pix[a+s]) + int(pix[a+s+3]) - 4*p.Black[c]
				pix[a] = toByte(float64(sum) * p.Gain[c])
			}
		}
	}
}

func plainGeneric(img Image, p Params) {
	n, pix, s := p.BinSize, img.Pix, img.Stride
	nn := n * n
	for y := 0; y <= img.Height-n; y++ {
		row := y * s
		for x := 0; x <= img.Width-n; x++ {
			o := row + x*BytesPerPixel
			var sum [3]int
			for i := 0; i < n; i++ {
				line := o + i*s
				for j := 0; j < n; j++ {
					q := line + j*BytesPerPixel
					sum[0] += int(pix[q])
					sum[1] += int(pix[q+1])
					sum[2] += int(pix[q+2])
				}
			}
			for c := 0; c < 3; c++ {
				pix[o+c] = toByte(float64(sum[c]-nn*p.Black[c]) * p.Gain[c])
			}
		}
	}
}
