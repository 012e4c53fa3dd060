// Package binningfilter bins video frames in place: every pixel is replaced
// by the combination of the N×N block anchored at it, trading resolution for
// noise and sensitivity.
//
// Three kernels are available:
//
//   - independent ("rgb"): sums R, G and B separately in linear light using
//     precomputed gamma tables, then applies per-channel gain.
//   - chroma: sums green for luminance and rebuilds R and B from the
//     average colour differences R−G and B−G, keeping hue at low light.
//   - plain: sums R, G and B in the encoded domain, no gamma.
//
// A test mode alternates independent and chroma every second of
// presentation time. Resize mode decimates to W/N × H/N with independent
// binning.
//
// Engine holds an atomically swappable Config and is safe for concurrent
// use. Filter hosts an Engine inside a GStreamer pipeline (internal/pipeline)
// and fans processed frames out to subscribers.
//
// # Quick Start
//
//	engine, err := binningfilter.NewEngine(binningfilter.Config{
//		Algorithm: binningfilter.AlgorithmChroma,
//		BinSize:   3,
//		Contrast:  binningfilter.RGB{R: 100, G: 100, B: 100},
//	})
//	if err != nil {
//		return err
//	}
//	res, err := engine.Process(&binningfilter.FrameBuffer{
//		Data: pix, Width: w, Height: h, Stride: w * 3, Order: binningfilter.OrderBGR,
//	})
package binningfilter
