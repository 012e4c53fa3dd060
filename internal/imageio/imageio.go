// Package imageio converts between packed 3-byte frames and image.Image and
// reads/writes still images for the command-line tools.
package imageio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// decoders registered for Load
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ToRGBA expands a packed frame to an opaque RGBA image. bgr selects the
// byte order of data.
func ToRGBA(data []byte, width, height int, bgr bool) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(data) < width*height*3 {
		return nil, fmt.Errorf("imageio: %d bytes do not hold %dx%d pixels", len(data), width, height)
	}

	r, b := 0, 2
	if bgr {
		r, b = 2, 0
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = data[i*3+r]
		img.Pix[i*4+1] = data[i*3+1]
		img.Pix[i*4+2] = data[i*3+b]
		img.Pix[i*4+3] = 255
	}
	return img, nil
}

// Pack flattens any image to packed 3-byte pixels. Alpha is discarded.
func Pack(img image.Image, bgr bool) (data []byte, width, height int) {
	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	r, b := 0, 2
	if bgr {
		r, b = 2, 0
	}

	data = make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < width; x++ {
			p := (y*width + x) * 3
			data[p+r] = row[x*4+0]
			data[p+1] = row[x*4+1]
			data[p+b] = row[x*4+2]
		}
	}
	return data, width, height
}

// Scale resamples img to width x height with Catmull-Rom.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Load decodes a PNG, JPEG, BMP, TIFF or WebP file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img by file extension: .jpg/.jpeg as JPEG, anything else as
// PNG.
func Save(path string, img image.Image, jpegQuality int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		if err := png.Encode(file, img); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	}

	return file.Close()
}
