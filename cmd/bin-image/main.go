// Command bin-image applies the binning engine to still images and frame
// dumps, and compares results against reference output.
//
//	bin-image -in photo.png -out binned.png -binsize 3 -algorithm chroma
//	bin-image -in photo.png -out small.png -binsize 2 -resize -ref expected.png
//	bin-image -replay frames.bdump -out-dir ./frames
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	binningfilter "github.com/e7canasta/orion-care-sensor/modules/binning-filter"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/framedump"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/imageio"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	in        string
	out       string
	ref       string
	tolerance int
	naive     string
	dump      string
	replay    string
	outDir    string
	format    string
	quality   int
	cfg       binningfilter.Config
}

func parse(args []string) (*options, error) {
	o := &options{cfg: binningfilter.DefaultConfig()}
	fs := flag.NewFlagSet("bin-image", flag.ContinueOnError)

	var algorithm string
	fs.StringVar(&o.in, "in", "", "Input image (png, jpeg, bmp, tiff, webp)")
	fs.StringVar(&o.out, "out", "", "Output image (.png or .jpg)")
	fs.StringVar(&o.ref, "ref", "", "Reference image to compare the output against")
	fs.IntVar(&o.tolerance, "tolerance", 0, "Maximum per-byte difference accepted by -ref")
	fs.StringVar(&o.naive, "naive", "", "Also write a Catmull-Rom rescale of the input at the output size")
	fs.StringVar(&o.dump, "dump", "", "Write the processed frame to this dump file")
	fs.StringVar(&o.replay, "replay", "", "Export every frame of a dump file as images")
	fs.StringVar(&o.outDir, "out-dir", ".", "Directory for -replay output")
	fs.StringVar(&o.format, "format", "BGR", "Channel order the engine sees: BGR or RGB")
	fs.IntVar(&o.quality, "jpeg-quality", 90, "JPEG quality for .jpg outputs")
	fs.StringVar(&algorithm, "algorithm", "rgb", "Binning algorithm: rgb, chroma, test, plain")
	fs.IntVar(&o.cfg.BinSize, "binsize", 2, "Bin size (1-7)")
	fs.BoolVar(&o.cfg.Resize, "resize", false, "Decimate to W/N x H/N (rgb only)")
	fs.IntVar(&o.cfg.Black.R, "rblack", 0, "Red black level")
	fs.IntVar(&o.cfg.Black.G, "gblack", 0, "Green black level")
	fs.IntVar(&o.cfg.Black.B, "bblack", 0, "Blue black level")
	fs.IntVar(&o.cfg.Contrast.R, "rcontrast", 100, "Red contrast percent (-1 = average)")
	fs.IntVar(&o.cfg.Contrast.G, "gcontrast", 100, "Green contrast percent (-1 = average)")
	fs.IntVar(&o.cfg.Contrast.B, "bcontrast", 100, "Blue contrast percent (-1 = average)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	alg, err := binningfilter.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	o.cfg.Algorithm = alg

	if o.replay == "" && (o.in == "" || o.out == "") {
		return nil, fmt.Errorf("-in and -out are required (or -replay)")
	}
	return o, nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parse(args)
	if err != nil {
		return err
	}
	if o.replay != "" {
		return replay(o, stdout)
	}
	return binImage(o, stdout)
}

func binImage(o *options, stdout io.Writer) error {
	order, err := binningfilter.ParseChannelOrder(o.format)
	if err != nil {
		return err
	}
	bgr := order == binningfilter.OrderBGR

	engine, err := binningfilter.NewEngine(o.cfg)
	if err != nil {
		return err
	}

	src, err := imageio.Load(o.in)
	if err != nil {
		return err
	}
	data, width, height := imageio.Pack(src, bgr)

	buf := &binningfilter.FrameBuffer{
		Data:   data,
		Width:  width,
		Height: height,
		Stride: width * 3,
		Order:  order,
	}
	res, err := engine.Process(buf)
	if err != nil {
		return err
	}

	out := cropPacked(data, width, res.Width, res.Height)
	img, err := imageio.ToRGBA(out, res.Width, res.Height, bgr)
	if err != nil {
		return err
	}
	if err := imageio.Save(o.out, img, o.quality); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %dx%d → %dx%d (%s, N=%d, %s)\n",
		o.out, width, height, res.Width, res.Height, res.Algorithm, o.cfg.BinSize, res.Duration)

	if o.naive != "" {
		if err := imageio.Save(o.naive, imageio.Scale(src, res.Width, res.Height), o.quality); err != nil {
			return err
		}
	}

	if o.dump != "" {
		if err := writeDump(o.dump, framedump.Frame{
			Data:      out,
			Width:     res.Width,
			Height:    res.Height,
			Order:     order.String(),
			Algorithm: res.Algorithm.String(),
			Seq:       1,
			Timestamp: time.Now(),
		}); err != nil {
			return err
		}
	}

	if o.ref != "" {
		return compareRef(o, out, res.Width, res.Height, order, stdout)
	}
	return nil
}

func compareRef(o *options, out []byte, width, height int, order binningfilter.ChannelOrder, stdout io.Writer) error {
	refImg, err := imageio.Load(o.ref)
	if err != nil {
		return err
	}
	refData, rw, rh := imageio.Pack(refImg, order == binningfilter.OrderBGR)

	diff, err := framedump.Compare(
		framedump.Frame{Data: out, Width: width, Height: height},
		framedump.Frame{Data: refData, Width: rw, Height: rh},
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "compare %s: max diff %d, %d of %d bytes differ\n", o.ref, diff.MaxAbs, diff.Differing, diff.Total)
	if !diff.Within(o.tolerance) {
		return fmt.Errorf("output differs from %s beyond tolerance %d", o.ref, o.tolerance)
	}
	return nil
}

// writeDump writes one frame to a new dump file, replacing any existing one.
func writeDump(path string, f framedump.Frame) error {
	w, err := framedump.Create(path)
	if err != nil {
		return err
	}
	if err := w.WriteFrame(f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func replay(o *options, stdout io.Writer) error {
	r, err := framedump.Open(o.replay)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(o.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	n := 0
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		img, err := imageio.ToRGBA(f.Data, f.Width, f.Height, f.Order == "BGR")
		if err != nil {
			return err
		}
		name := filepath.Join(o.outDir, fmt.Sprintf("frame_%06d_%s.png", f.Seq, f.Algorithm))
		if err := imageio.Save(name, img, o.quality); err != nil {
			return err
		}
		n++
	}

	fmt.Fprintf(stdout, "%s: exported %d frames to %s\n", o.replay, n, o.outDir)
	return nil
}

// cropPacked copies the top-left width x height region of a packed buffer
// whose rows are stride pixels wide.
func cropPacked(data []byte, stride, width, height int) []byte {
	if width == stride {
		return data[:width*height*3]
	}
	out := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		copy(out[y*width*3:(y+1)*width*3], data[y*stride*3:])
	}
	return out
}
