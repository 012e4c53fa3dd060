package main

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/imageio"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(40 * x), G: 90, B: uint8(50 * y), A: 255})
		}
	}
	path := filepath.Join(dir, "in.png")
	if err := imageio.Save(path, img, 0); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_ResizeCompareAndReplay(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir)
	out := filepath.Join(dir, "out.png")
	dump := filepath.Join(dir, "out.bdump")

	var stdout bytes.Buffer
	err := run([]string{"-in", in, "-out", out, "-binsize", "2", "-resize", "-dump", dump, "-naive", filepath.Join(dir, "naive.png")}, &stdout)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "6x4 → 3x2") {
		t.Errorf("stdout = %q", stdout.String())
	}

	img, err := imageio.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("output size = %v, want 3x2", b)
	}

	// The same run compared against its own output matches exactly.
	stdout.Reset()
	err = run([]string{"-in", in, "-out", filepath.Join(dir, "again.png"), "-binsize", "2", "-resize", "-ref", out}, &stdout)
	if err != nil {
		t.Fatalf("compare run error = %v", err)
	}
	if !strings.Contains(stdout.String(), "max diff 0") {
		t.Errorf("stdout = %q", stdout.String())
	}

	// A different algorithm against the same reference fails at zero tolerance.
	err = run([]string{"-in", in, "-out", filepath.Join(dir, "plain.png"), "-binsize", "2", "-algorithm", "plain", "-ref", out}, &stdout)
	if err == nil {
		t.Error("size mismatch against resize reference should fail")
	}

	stdout.Reset()
	frames := filepath.Join(dir, "frames")
	if err := run([]string{"-replay", dump, "-out-dir", frames}, &stdout); err != nil {
		t.Fatalf("replay error = %v", err)
	}
	entries, err := os.ReadDir(frames)
	if err != nil || len(entries) != 1 {
		t.Fatalf("replay wrote %d files, err = %v", len(entries), err)
	}

	t.Logf("✅ %s", strings.TrimSpace(stdout.String()))
}

func TestRun_InPlaceKeepsSize(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir)
	out := filepath.Join(dir, "out.png")

	var stdout bytes.Buffer
	if err := run([]string{"-in", in, "-out", out, "-binsize", "3", "-algorithm", "chroma", "-format", "rgb"}, &stdout); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	img, err := imageio.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 4 {
		t.Errorf("output size = %v, want 6x4", b)
	}
}

func TestRun_BadArgs(t *testing.T) {
	var stdout bytes.Buffer
	tests := [][]string{
		{},
		{"-in", "x.png"},
		{"-in", "x.png", "-out", "y.png", "-algorithm", "bicubic"},
		{"-in", "missing.png", "-out", "y.png"},
		{"-in", "x.png", "-out", "y.png", "-algorithm", "chroma", "-resize"},
	}
	for _, args := range tests {
		if err := run(args, &stdout); err == nil {
			t.Errorf("run(%v) should fail", args)
		}
	}
}

func TestCropPacked(t *testing.T) {
	data := []byte{
		1, 1, 1, 2, 2, 2, 3, 3, 3,
		4, 4, 4, 5, 5, 5, 6, 6, 6,
	}
	got := cropPacked(data, 3, 2, 1)
	if !bytes.Equal(got, []byte{1, 1, 1, 2, 2, 2}) {
		t.Errorf("cropPacked() = %v", got)
	}
}
