package binning

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/gamma"
)

var tables = gamma.Build(gamma.DefaultGamma)

func newImage(w, h int) Image {
	return Image{Pix: make([]byte, w*h*BytesPerPixel), Width: w, Height: h, Stride: w * BytesPerPixel}
}

func randomImage(w, h int, seed int64) Image {
	img := newImage(w, h)
	rand.New(rand.NewSource(seed)).Read(img.Pix)
	return img
}

func uniformImage(w, h int, bgr [3]uint8) Image {
	img := newImage(w, h)
	for i := 0; i < len(img.Pix); i += 3 {
		copy(img.Pix[i:i+3], bgr[:])
	}
	return img
}

func cloneImage(img Image) Image {
	c := img
	c.Pix = append([]byte(nil), img.Pix...)
	return c
}

func at(img Image, x, y, c int) uint8 {
	return img.Pix[y*img.Stride+x*BytesPerPixel+c]
}

// referenceIndependent reads from a pristine copy and writes to a fresh
// output, so it does not depend on traversal order.
func referenceIndependent(src Image, p Params) Image {
	out := cloneImage(src)
	n := p.BinSize
	for y := 0; y <= src.Height-n; y++ {
		for x := 0; x <= src.Width-n; x++ {
			for c := 0; c < 3; c++ {
				var sum float64
				for i := 0; i < n; i++ {
					for j := 0; j < n; j++ {
						sum += tables.Forward[level(at(src, x+j, y+i, c), p.Black[c])]
					}
				}
				out.Pix[y*out.Stride+x*3+c] = tables.Encode(sum * p.Gain[c])
			}
		}
	}
	return out
}

func TestNewParams(t *testing.T) {
	p := NewParams(3, [3]int{1, 2, 3}, [3]int{100, -1, 250})

	if p.Gain[0] != 1.0 {
		t.Errorf("gain[0] = %v, want 1.0", p.Gain[0])
	}
	if p.Gain[1] != 1.0/9.0 {
		t.Errorf("gain[1] = %v, want 1/9", p.Gain[1])
	}
	if p.Gain[2] != 2.5 {
		t.Errorf("gain[2] = %v, want 2.5", p.Gain[2])
	}
	if p.Black != [3]int{1, 2, 3} {
		t.Errorf("black = %v", p.Black)
	}
	if p.Identity() {
		t.Error("Identity() = true for non-unity params")
	}
	if !NewParams(1, [3]int{}, [3]int{100, 100, 100}).Identity() {
		t.Error("Identity() = false for 1x1 unity params")
	}
	// Averaging at N=1 is also unity gain.
	if !NewParams(1, [3]int{}, [3]int{-1, -1, -1}).Identity() {
		t.Error("Identity() = false for 1x1 averaging params")
	}
}

func TestKernels_RejectBadInput(t *testing.T) {
	good := NewParams(2, [3]int{}, [3]int{100, 100, 100})

	tests := []struct {
		name string
		img  Image
		p    Params
	}{
		{"zero width", Image{Pix: make([]byte, 30), Width: 0, Height: 10, Stride: 0}, good},
		{"stride mismatch", Image{Pix: make([]byte, 400), Width: 10, Height: 10, Stride: 40}, good},
		{"short buffer", Image{Pix: make([]byte, 10), Width: 10, Height: 10, Stride: 30}, good},
		{"bin size 0", newImage(10, 10), Params{BinSize: 0}},
		{"bin size 8", newImage(10, 10), Params{BinSize: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Independent(tt.img, tt.p, tables); err == nil {
				t.Error("Independent: expected error")
			}
			if err := Chroma(tt.img, tt.p); err == nil {
				t.Error("Chroma: expected error")
			}
			if err := Plain(tt.img, tt.p); err == nil {
				t.Error("Plain: expected error")
			}
			if _, _, err := Resize(tt.img, tt.p, tables); err == nil {
				t.Error("Resize: expected error")
			}
		})
	}
}

func TestKernels_NoOpAtUnity(t *testing.T) {
	p := NewParams(1, [3]int{}, [3]int{100, 100, 100})
	src := randomImage(17, 11, 42)

	kernels := map[string]func(Image) error{
		"independent": func(img Image) error { return Independent(img, p, tables) },
		"chroma":      func(img Image) error { return Chroma(img, p) },
		"plain":       func(img Image) error { return Plain(img, p) },
		"resize": func(img Image) error {
			_, _, err := Resize(img, p, tables)
			return err
		},
	}

	for name, run := range kernels {
		t.Run(name, func(t *testing.T) {
			img := cloneImage(src)
			if err := run(img); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(img.Pix, src.Pix) {
				t.Error("buffer modified by unity pass")
			}
		})
	}
}

func TestKernels_RangeSafety(t *testing.T) {
	extremes := []struct {
		name     string
		black    int
		contrast int
	}{
		{"max black", 255, 100},
		{"max contrast", 0, 1000},
		{"max both", 255, 1000},
		{"min contrast", 0, 1},
		{"averaging", 128, -1},
	}

	for _, ex := range extremes {
		for n := 1; n <= MaxBinSize; n++ {
			p := NewParams(n, [3]int{ex.black, ex.black, ex.black}, [3]int{ex.contrast, ex.contrast, ex.contrast})
			for _, fill := range []uint8{0, 255} {
				img := uniformImage(9, 9, [3]uint8{fill, fill, fill})
				if err := Independent(cloneImage(img), p, tables); err != nil {
					t.Fatalf("%s n=%d: Independent: %v", ex.name, n, err)
				}
				if err := Chroma(cloneImage(img), p); err != nil {
					t.Fatalf("%s n=%d: Chroma: %v", ex.name, n, err)
				}
				if err := Plain(cloneImage(img), p); err != nil {
					t.Fatalf("%s n=%d: Plain: %v", ex.name, n, err)
				}
				if _, _, err := Resize(cloneImage(img), p, tables); err != nil {
					t.Fatalf("%s n=%d: Resize: %v", ex.name, n, err)
				}
			}
		}
	}

	// Saturation clamps rather than wraps.
	img := uniformImage(4, 4, [3]uint8{255, 255, 255})
	p := NewParams(2, [3]int{}, [3]int{1000, 1000, 1000})
	if err := Chroma(img, p); err != nil {
		t.Fatal(err)
	}
	if got := at(img, 0, 0, 1); got != 255 {
		t.Errorf("saturated chroma G = %d, want 255", got)
	}

	// Full black subtraction floors at zero.
	img = uniformImage(4, 4, [3]uint8{100, 100, 100})
	p = NewParams(2, [3]int{255, 255, 255}, [3]int{1000, 1000, 1000})
	if err := Plain(img, p); err != nil {
		t.Fatal(err)
	}
	if got := at(img, 0, 0, 0); got != 0 {
		t.Errorf("black-clipped plain B = %d, want 0", got)
	}
}

func TestKernels_EdgePreservation(t *testing.T) {
	const n, w, h = 3, 10, 10
	p := NewParams(n, [3]int{5, 5, 5}, [3]int{-1, -1, -1})
	src := randomImage(w, h, 7)

	kernels := map[string]func(Image) error{
		"independent": func(img Image) error { return Independent(img, p, tables) },
		"chroma":      func(img Image) error { return Chroma(img, p) },
		"plain":       func(img Image) error { return Plain(img, p) },
	}

	for name, run := range kernels {
		t.Run(name, func(t *testing.T) {
			img := cloneImage(src)
			if err := run(img); err != nil {
				t.Fatal(err)
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					if x <= w-n && y <= h-n {
						continue
					}
					for c := 0; c < 3; c++ {
						if at(img, x, y, c) != at(src, x, y, c) {
							t.Fatalf("pixel (%d,%d) ch %d changed outside valid region", x, y, c)
						}
					}
				}
			}
		})
	}
}

func TestKernels_SmallerThanWindow(t *testing.T) {
	src := randomImage(3, 2, 11)
	img := cloneImage(src)
	p := NewParams(4, [3]int{}, [3]int{100, 100, 100})

	if err := Independent(img, p, tables); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix, src.Pix) {
		t.Error("image smaller than window should be untouched")
	}

	w, h, err := Resize(img, p, tables)
	if err != nil {
		t.Fatal(err)
	}
	if w != 0 || h != 0 {
		t.Errorf("Resize extent = %dx%d, want 0x0", w, h)
	}
}

func TestChroma_AverageSentinel(t *testing.T) {
	for _, v := range []uint8{0, 1, 37, 128, 200, 255} {
		img := uniformImage(6, 6, [3]uint8{v, v, v})
		p := NewParams(2, [3]int{}, [3]int{-1, -1, -1})
		if err := Chroma(img, p); err != nil {
			t.Fatal(err)
		}
		for c := 0; c < 3; c++ {
			if got := at(img, 2, 2, c); got != v {
				t.Errorf("V=%d ch %d: got %d, want exact %d", v, c, got, v)
			}
		}
	}
}

func TestIndependent_AverageSentinel(t *testing.T) {
	for _, v := range []uint8{0, 1, 37, 128, 200, 255} {
		img := uniformImage(6, 6, [3]uint8{v, v, v})
		p := NewParams(2, [3]int{}, [3]int{-1, -1, -1})
		if err := Independent(img, p, tables); err != nil {
			t.Fatal(err)
		}
		want := int(tables.RoundTrip(v))
		got := int(at(img, 1, 1, green))
		if got < want-1 || got > want+1 {
			t.Errorf("V=%d: got %d, want table round trip %d ±1", v, got, want)
		}
	}
	t.Logf("✅ averaged constant matches forward/inverse round trip")
}

func TestChroma_GreyReconstruction(t *testing.T) {
	img := newImage(8, 8)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < len(img.Pix); i += 3 {
		v := uint8(rng.Intn(64))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = v, v, v
	}

	for _, n := range []int{1, 2, 3, 4, 5} {
		work := cloneImage(img)
		if err := Chroma(work, NewParams(n, [3]int{}, [3]int{100, 100, 100})); err != nil {
			t.Fatal(err)
		}
		for y := 0; y <= work.Height-n; y++ {
			for x := 0; x <= work.Width-n; x++ {
				b, g, r := at(work, x, y, 0), at(work, x, y, 1), at(work, x, y, 2)
				if b != g || r != g {
					t.Fatalf("n=%d (%d,%d): B=%d G=%d R=%d, want equal", n, x, y, b, g, r)
				}
			}
		}
	}
}

func TestChroma_ColourDifference(t *testing.T) {
	// B-G = +8 per pixel, R-G = -4 per pixel.
	img := uniformImage(4, 4, [3]uint8{58, 50, 46})
	if err := Chroma(img, NewParams(2, [3]int{}, [3]int{100, 100, 100})); err != nil {
		t.Fatal(err)
	}

	// G = 200, B = 200 + 32/2 = 216, R = 200 - 16/2 = 192
	want := [3]uint8{216, 200, 192}
	for c := 0; c < 3; c++ {
		if got := at(img, 0, 0, c); got != want[c] {
			t.Errorf("ch %d = %d, want %d", c, got, want[c])
		}
	}
}

func TestChannelsUseOwnSettings(t *testing.T) {
	img := uniformImage(4, 4, [3]uint8{100, 100, 100})
	p := NewParams(1, [3]int{50, 0, 0}, [3]int{100, 100, 200})
	if err := Plain(img, p); err != nil {
		t.Fatal(err)
	}
	want := [3]uint8{50, 100, 200}
	for c := 0; c < 3; c++ {
		if got := at(img, 3, 3, c); got != want[c] {
			t.Errorf("ch %d = %d, want %d", c, got, want[c])
		}
	}
}

func TestIndependent_MatchesReference(t *testing.T) {
	for n := 1; n <= MaxBinSize; n++ {
		src := randomImage(23, 19, int64(n))
		p := NewParams(n, [3]int{3, 0, 12}, [3]int{-1, 80, 35})

		img := cloneImage(src)
		if err := Independent(img, p, tables); err != nil {
			t.Fatal(err)
		}
		want := referenceIndependent(src, p)
		if !bytes.Equal(img.Pix, want.Pix) {
			t.Errorf("n=%d: in-place result differs from out-of-place reference", n)
		}
	}
}

func TestFastPathsMatchGeneric(t *testing.T) {
	black := [3]int{4, 9, 0}
	contrast := [3]int{30, -1, 120}

	for n := 1; n <= 4; n++ {
		p := NewParams(n, black, contrast)
		src := randomImage(31, 17, int64(100+n))

		fast, generic := cloneImage(src), cloneImage(src)
		if err := Independent(fast, p, tables); err != nil {
			t.Fatal(err)
		}
		independentGeneric(generic, p, tables)
		if !bytes.Equal(fast.Pix, generic.Pix) {
			t.Errorf("independent n=%d: fast path differs from generic", n)
		}

		if n == 1 {
			continue
		}

		fast, generic = cloneImage(src), cloneImage(src)
		if err := Chroma(fast, p); err != nil {
			t.Fatal(err)
		}
		chromaGeneric(generic, p)
		if !bytes.Equal(fast.Pix, generic.Pix) {
			t.Errorf("chroma n=%d: fast path differs from generic", n)
		}

		fast, generic = cloneImage(src), cloneImage(src)
		if err := Plain(fast, p); err != nil {
			t.Fatal(err)
		}
		plainGeneric(generic, p)
		if !bytes.Equal(fast.Pix, generic.Pix) {
			t.Errorf("plain n=%d: fast path differs from generic", n)
		}
	}
	t.Logf("✅ fast paths agree with generic kernels for N=1..4")
}

func TestResize_Extent(t *testing.T) {
	tests := []struct {
		w, h, n      int
		wantW, wantH int
	}{
		{10, 7, 3, 3, 2},
		{8, 8, 2, 4, 4},
		{9, 5, 1, 9, 5},
		{7, 14, 7, 1, 2},
	}

	for _, tt := range tests {
		img := randomImage(tt.w, tt.h, 9)
		w, h, err := Resize(img, NewParams(tt.n, [3]int{}, [3]int{-1, -1, -1}), tables)
		if err != nil {
			t.Fatal(err)
		}
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("%dx%d n=%d: extent %dx%d, want %dx%d", tt.w, tt.h, tt.n, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestResize_TilesAndStaleRegion(t *testing.T) {
	const w, h, n = 11, 8, 3
	src := randomImage(w, h, 21)
	p := NewParams(n, [3]int{2, 2, 2}, [3]int{-1, -1, -1})

	img := cloneImage(src)
	outW, outH, err := Resize(img, p, tables)
	if err != nil {
		t.Fatal(err)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				got := at(img, x, y, c)
				if x < outW && y < outH {
					var sum float64
					for i := 0; i < n; i++ {
						for j := 0; j < n; j++ {
							sum += tables.Forward[level(at(src, x*n+j, y*n+i, c), p.Black[c])]
						}
					}
					if want := tables.Encode(sum * p.Gain[c]); got != want {
						t.Fatalf("tile (%d,%d) ch %d = %d, want %d", x, y, c, got, want)
					}
				} else if got != at(src, x, y, c) {
					t.Fatalf("pixel (%d,%d) outside output changed", x, y)
				}
			}
		}
	}
}
