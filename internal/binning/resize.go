package binning

import "github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/gamma"

// Resize bins non-overlapping N×N tiles in linear light and packs the
// results at the top-left of the buffer, keeping the stride. It returns the
// logical output size floor(W/N) × floor(H/N); bytes outside that region
// keep stale input and are expected to be cropped by the caller.
//
// Tile (ox, oy) is written at or before the first byte of its own source
// tile, and every later tile reads strictly after that, so raster order is
// safe in place.
func Resize(img Image, p Params, t *gamma.Tables) (int, int, error) {
	if err := img.Validate(); err != nil {
		return 0, 0, err
	}
	if err := p.validate(); err != nil {
		return 0, 0, err
	}

	n := p.BinSize
	if n == 1 {
		if !p.Identity() {
			independent1(img, p, t)
		}
		return img.Width, img.Height, nil
	}

	outW, outH := img.Width/n, img.Height/n
	pix, fw, s := img.Pix, &t.Forward, img.Stride

	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			src := oy*n*s + ox*n*BytesPerPixel
			var sum [3]float64
			for i := 0; i < n; i++ {
				line := src + i*s
				for j := 0; j < n; j++ {
					q := line + j*BytesPerPixel
					for c := 0; c < 3; c++ {
						sum[c] += lin(fw, pix[q+c], p.Black[c])
					}
				}
			}
			dst := oy*s + ox*BytesPerPixel
			for c := 0; c < 3; c++ {
				pix[dst+c] = t.Encode(sum[c] * p.Gain[c])
			}
		}
	}

	return outW, outH, nil
}
