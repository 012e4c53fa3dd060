package binning

// green is the physical index of the luma-carrying channel in both BGR and
// RGB layouts.
const green = 1

// Chroma bins the green channel directly and rebuilds the other two from the
// averaged colour difference, skipping the gamma round trip:
//
//	G = sumG * gainG
//	R = (sumG + (sumR - sumG) / (N²/2)) * gainR
//
// Sums are taken after black subtraction and may go negative; every result
// is clamped to 0..255. A 1×1 pass applies black and gain only.
func Chroma(img Image, p Params) error {
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
		chroma1(img, p)
	case 2:
		chroma2(img, p)
	case 3:
		chroma3(img, p)
	case 4:
		chroma4(img, p)
	default:
		chromaGeneric(img, p)
	}
	return nil
}

// chromaWeight is the divisor applied to the summed colour difference.
func chromaWeight(n int) float64 {
	return float64(n*n) / 2.0
}

func storeChroma(pix []byte, o int, sum [3]int, d float64, p Params) {
	g := float64(sum[green])
	pix[o] = toByte((g + float64(sum[0]-sum[green])/d) * p.Gain[0])
	pix[o+1] = toByte(g * p.Gain[green])
	pix[o+2] = toByte((g + float64(sum[2]-sum[green])/d) * p.Gain[2])
}

func chroma1(img Image, p Params) {
	pix := img.Pix
	for y := 0; y < img.Height; y++ {
		row := y * img.Stride
		for x := 0; x < img.Width; x++ {
			o := row + x*BytesPerPixel
			for c := 0; c < 3; c++ {
				pix[o+c] = toByte(float64(int(pix[o+c])-p.Black[c]) * p.Gain[c])
			}
		}
	}
}

func chroma2(img Image, p Params) {
	pix, s, d := img.Pix, img.Stride, chromaWeight(2)
	for y := 0; y <= img.Height-2; y++ {
		row := y * s
		for x := 0; x <= img.Width-2; x++ {
			o := row + x*BytesPerPixel
			var sum [3]int
			for c := 0; c < 3; c++ {
				a := o + c
				sum[c] = int(pix[a]) + int(pix[a+3]) + int(pix[a+s]) + int(pix[a+s+3]) - 4*p.Black[c]
			}
			storeChroma(pix, o, sum, d, p)
		}
	}
}

func chroma3(img Image, p Params) {
	pix, s, d := img.Pix, img.Stride, chromaWeight(3)
	for y := 0; y <= img.Height-3; y++ {
		row := y * s
		for x := 0; x <= img.Width-3; x++ {
			o := row + x*BytesPerPixel
			var sum [3]int
			for c := 0; c < 3; c++ {
				a := o + c
				r1, r2 := a+s, a+2*s
				sum[c] = int(pix[a]) + int(pix[a+3]) + int(pix[a+6]) +
					int(pix[r1]) + int(pix[r1+3]) + int(pix[r1+6]) +
					int(pix[r2]) + int(pix[r2+3]) + int(pix[r2+6]) - 9*p.Black[c]
			}
			storeChroma(pix, o, sum, d, p)
		}
	}
}

func chroma4(img Image, p Params) {
	pix, s, d := img.Pix, img.Stride, chromaWeight(4)
	for y := 0; y <= img.Height-4; y++ {
		row := y * s
		for x := 0; x <= img.Width-4; x++ {
			o := row + x*BytesPerPixel
			var sum [3]int
			for c := 0; c < 3; c++ {
				a := o + c
				r1, r2, r3 := a+s, a+2*s, a+3*s
				sum[c] = int(pix[a]) + int(pix[a+3]) + int(pix[a+6]) + int(pix[a+9]) +
					int(pix[r1]) + int(pix[r1+3]) + int(pix[r1+6]) + int(pix[r1+9]) +
					int(pix[r2]) + int(pix[r2+3]) + int(pix[r2+6]) + int(pix[r2+9]) +
					int(pix[r3]) + int(pix[r3+3]) + int(pix[r3+6]) + int(pix[r3+9]) - 16*p.Black[c]
			}
			storeChroma(pix, o, sum, d, p)
		}
	}
}

func chromaGeneric(img Image, p Params) {
	n, pix, s := p.BinSize, img.Pix, img.Stride
	d := chromaWeight(n)
	for y := 0; y <= img.Height-n; y++ {
		row := y * s
		for x := 0; x <= img.Width-n; x++ {
			o := row + x*BytesPerPixel
			var sum [3]int
			for i := 0; i < n; i++ {
				line := o + i*s
				for j := 0; j < n; j++ {
					q := line + j*BytesPerPixel
					for c := 0; c < 3; c++ {
						sum[c] += int(pix[q+c]) - p.Black[c]
					}
				}
			}
			storeChroma(pix, o, sum, d, p)
		}
	}
}
