package binningfilter

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"default", func(c *Config) {}, nil},
		{"max binsize", func(c *Config) { c.BinSize = 7 }, nil},
		{"binsize zero", func(c *Config) { c.BinSize = 0 }, ErrInvalidConfig},
		{"binsize eight", func(c *Config) { c.BinSize = 8 }, ErrInvalidConfig},
		{"black 255", func(c *Config) { c.Black.G = 255 }, nil},
		{"black negative", func(c *Config) { c.Black.R = -1 }, ErrInvalidConfig},
		{"black 256", func(c *Config) { c.Black.B = 256 }, ErrInvalidConfig},
		{"contrast average", func(c *Config) { c.Contrast = RGB{-1, -1, -1} }, nil},
		{"contrast 1000", func(c *Config) { c.Contrast.R = 1000 }, nil},
		{"contrast zero", func(c *Config) { c.Contrast.G = 0 }, ErrInvalidConfig},
		{"contrast -2", func(c *Config) { c.Contrast.B = -2 }, ErrInvalidConfig},
		{"contrast 1001", func(c *Config) { c.Contrast.R = 1001 }, ErrInvalidConfig},
		{"unknown algorithm", func(c *Config) { c.Algorithm = Algorithm(42) }, ErrInvalidConfig},
		{"resize independent", func(c *Config) { c.Resize = true }, nil},
		{"resize chroma", func(c *Config) { c.Resize = true; c.Algorithm = AlgorithmChroma }, ErrResizeUnsupported},
		{"resize test", func(c *Config) { c.Resize = true; c.Algorithm = AlgorithmTest }, ErrResizeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Clamp(t *testing.T) {
	cfg := Config{
		Algorithm: AlgorithmChroma,
		BinSize:   12,
		Resize:    true,
		Black:     RGB{R: -5, G: 300, B: 10},
		Contrast:  RGB{R: -7, G: 0, B: 5000},
	}

	got := cfg.Clamp()
	if err := got.Validate(); err != nil {
		t.Fatalf("clamped config invalid: %v", err)
	}

	want := Config{
		Algorithm: AlgorithmChroma,
		BinSize:   7,
		Black:     RGB{R: 0, G: 255, B: 10},
		Contrast:  RGB{R: -1, G: 1, B: 1000},
	}
	if got != want {
		t.Errorf("Clamp() = %+v, want %+v", got, want)
	}
}

func TestConfig_Physical(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Black = RGB{R: 1, G: 2, B: 3}
	cfg.Contrast = RGB{R: 10, G: 20, B: 30}

	black, contrast := cfg.Physical(OrderBGR)
	if black != [3]int{3, 2, 1} || contrast != [3]int{30, 20, 10} {
		t.Errorf("BGR: black=%v contrast=%v", black, contrast)
	}

	black, contrast = cfg.Physical(OrderRGB)
	if black != [3]int{1, 2, 3} || contrast != [3]int{10, 20, 30} {
		t.Errorf("RGB: black=%v contrast=%v", black, contrast)
	}
}

func TestConfig_ApplyPatch(t *testing.T) {
	var p Patch
	if err := json.Unmarshal([]byte(`{"algorithm":"chroma","binsize":3,"gblack":12,"rcontrast":-1}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Empty() {
		t.Fatal("decoded patch reported empty")
	}

	got := DefaultConfig().Apply(p)
	if got.Algorithm != AlgorithmChroma || got.BinSize != 3 || got.Black.G != 12 || got.Contrast.R != -1 {
		t.Errorf("Apply() = %+v", got)
	}
	if got.Contrast.G != ContrastUnity || got.Resize {
		t.Errorf("untouched fields changed: %+v", got)
	}

	if !(Patch{}).Empty() {
		t.Error("zero patch not empty")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]Algorithm{
		"rgb":               AlgorithmIndependent,
		"independent":       AlgorithmIndependent,
		"chroma":            AlgorithmChroma,
		"Chroma-Preserving": AlgorithmChroma,
		"test":              AlgorithmTest,
		"alternating-test":  AlgorithmTest,
		" plain ":           AlgorithmPlain,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		if err != nil || got != want {
			t.Errorf("ParseAlgorithm(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseAlgorithm("bilinear"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParseAlgorithm(bilinear) error = %v", err)
	}
}

func TestAlgorithm_TextRoundTrip(t *testing.T) {
	for _, a := range []Algorithm{AlgorithmIndependent, AlgorithmChroma, AlgorithmTest, AlgorithmPlain} {
		b, _ := a.MarshalText()
		var got Algorithm
		if err := got.UnmarshalText(b); err != nil || got != a {
			t.Errorf("%v: round trip gave %v, %v", a, got, err)
		}
	}
}

func TestParseChannelOrder(t *testing.T) {
	if o, err := ParseChannelOrder("RGB"); err != nil || o != OrderRGB {
		t.Errorf("RGB: %v %v", o, err)
	}
	if o, err := ParseChannelOrder("bgr"); err != nil || o != OrderBGR {
		t.Errorf("bgr: %v %v", o, err)
	}
	if _, err := ParseChannelOrder("I420"); !errors.Is(err, ErrFormatUnresolved) {
		t.Errorf("I420: error = %v", err)
	}
}
