// Package pipeline builds and supervises the GStreamer pipeline that hosts
// the binning filter.
//
// Pipeline structure:
//
//	<source> → videoconvert → [videoscale] → [videorate] → capsfilter →
//	identity(name=binning) → videocrop → <sink>
//
// The identity element carries a buffer probe that hands each mapped frame
// to the caller, which rewrites it in place. videocrop trims the stale
// margin resize mode leaves behind and passes frames through otherwise.
package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Sink kinds.
const (
	SinkAuto = "auto"
	SinkFake = "fake"
	SinkApp  = "app"
)

// FilterName is the name of the identity element the probe is attached to.
const FilterName = "binning"

// Config describes the pipeline to build.
type Config struct {
	URI     string // empty = videotestsrc, rtsp://... = rtspsrc, anything else = uridecodebin
	Pattern string // videotestsrc pattern
	Format  string // BGR or RGB
	Width   int    // 0 keeps the source size
	Height  int
	FPS     int // 0 keeps the source rate
	Sink    string
}

// Live reports whether the source never reaches end of stream on its own.
func (c Config) Live() bool {
	return c.URI == "" || strings.HasPrefix(c.URI, "rtsp://") || strings.HasPrefix(c.URI, "rtsps://")
}

// Elements holds references to the pipeline elements needed after creation.
type Elements struct {
	Pipeline *gst.Pipeline
	Filter   *gst.Element // identity carrying the binning probe
	Crop     *gst.Element
	AppSink  *app.Sink    // nil unless Sink == SinkApp
	Source   *gst.Element // rtspsrc or uridecodebin when pads are dynamic
	Entry    *gst.Element // element dynamic source pads link to
}

// CreatePipeline creates and links the pipeline without starting it. The
// caller sets it to PLAYING.
func CreatePipeline(cfg Config) (*Elements, error) {
	gst.Init(nil)

	if cfg.Format == "" {
		cfg.Format = "BGR"
	}
	if cfg.Sink == "" {
		cfg.Sink = SinkAuto
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	elems := &Elements{Pipeline: pipeline}

	// Source chain. chain holds the statically linked elements in order.
	var chain []*gst.Element
	switch {
	case cfg.URI == "":
		src, err := newElement("videotestsrc", map[string]interface{}{
			"is-live": true,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Pattern != "" {
			pattern, err := PatternValue(cfg.Pattern)
			if err != nil {
				return nil, err
			}
			src.SetProperty("pattern", pattern)
		}
		chain = append(chain, src)

	case strings.HasPrefix(cfg.URI, "rtsp://") || strings.HasPrefix(cfg.URI, "rtsps://"):
		// protocols=4 (TCP only)
		src, err := newElement("rtspsrc", map[string]interface{}{
			"location":  cfg.URI,
			"protocols": 4,
			"latency":   200,
		})
		if err != nil {
			return nil, err
		}
		depay, err := newElement("rtph264depay", map[string]interface{}{
			"request-keyframe": true,
		})
		if err != nil {
			return nil, err
		}
		decoder, err := newElement("avdec_h264", map[string]interface{}{
			"max-threads": 0,
		})
		if err != nil {
			return nil, err
		}
		pipeline.Add(src)
		elems.Source, elems.Entry = src, depay
		chain = append(chain, depay, decoder)

	default:
		src, err := newElement("uridecodebin", map[string]interface{}{
			"uri": cfg.URI,
		})
		if err != nil {
			return nil, err
		}
		pipeline.Add(src)
		elems.Source = src
	}

	convert, err := newElement("videoconvert", nil)
	if err != nil {
		return nil, err
	}
	if elems.Source != nil && elems.Entry == nil {
		elems.Entry = convert
	}
	chain = append(chain, convert)

	if cfg.Width > 0 && cfg.Height > 0 {
		scale, err := newElement("videoscale", nil)
		if err != nil {
			return nil, err
		}
		chain = append(chain, scale)
	}
	if cfg.FPS > 0 {
		rate, err := newElement("videorate", map[string]interface{}{
			"drop-only": true,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, rate)
	}

	capsfilter, err := newElement("capsfilter", nil)
	if err != nil {
		return nil, err
	}
	capsStr := BuildCaps(cfg.Format, cfg.Width, cfg.Height, cfg.FPS)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))
	chain = append(chain, capsfilter)

	identity, err := newElement("identity", map[string]interface{}{
		"name": FilterName,
	})
	if err != nil {
		return nil, err
	}
	elems.Filter = identity
	chain = append(chain, identity)

	crop, err := newElement("videocrop", nil)
	if err != nil {
		return nil, err
	}
	elems.Crop = crop
	chain = append(chain, crop)

	switch cfg.Sink {
	case SinkAuto:
		// Resize changes the geometry mid-stream; the display needs its own
		// converter to renegotiate.
		outConvert, err := newElement("videoconvert", nil)
		if err != nil {
			return nil, err
		}
		sink, err := newElement("autovideosink", nil)
		if err != nil {
			return nil, err
		}
		chain = append(chain, outConvert, sink)

	case SinkFake:
		sink, err := newElement("fakesink", map[string]interface{}{
			"sync": false,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, sink)

	case SinkApp:
		sink, err := app.NewAppSink()
		if err != nil {
			return nil, fmt.Errorf("failed to create appsink: %w", err)
		}
		sink.SetProperty("sync", false)
		sink.SetProperty("max-buffers", 1)
		sink.SetProperty("drop", true)
		elems.AppSink = sink
		chain = append(chain, sink.Element)

	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	if err := pipeline.AddMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	if elems.Source != nil {
		entry := elems.Entry
		elems.Source.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
			OnPadAdded(srcPad, entry)
		})
	}

	slog.Info("pipeline: created",
		"source", describeSource(cfg),
		"caps", capsStr,
		"sink", cfg.Sink,
	)

	return elems, nil
}

// SetCrop sets the right and bottom margins trimmed from each frame.
func (e *Elements) SetCrop(right, bottom int) {
	if e == nil || e.Crop == nil {
		return
	}
	e.Crop.SetProperty("right", right)
	e.Crop.SetProperty("bottom", bottom)
}

// DestroyPipeline sets the pipeline to NULL, releasing its resources. Safe
// to call with nil.
func DestroyPipeline(elements *Elements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// OnPadAdded links a dynamic source pad to the sink pad of entry. Pads that
// cannot link (audio from uridecodebin, or a second video pad) are logged
// and left unlinked.
func OnPadAdded(srcPad *gst.Pad, entry *gst.Element) {
	slog.Debug("pipeline: pad-added signal received", "pad", srcPad.GetName())

	sinkPad := entry.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("pipeline: failed to get sink pad", "element", entry.GetName())
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Debug("pipeline: pad not linked",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("pipeline: pads linked",
		"src_pad", srcPad.GetName(),
		"sink_pad", sinkPad.GetName(),
	)
}

// BuildCaps builds the capsfilter string that pins the pixel format and,
// when set, the geometry and frame rate.
func BuildCaps(format string, width, height, fps int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "video/x-raw,format=%s", strings.ToUpper(format))
	if width > 0 && height > 0 {
		fmt.Fprintf(&b, ",width=%d,height=%d", width, height)
	}
	if fps > 0 {
		fmt.Fprintf(&b, ",framerate=%d/1", fps)
	}
	return b.String()
}

// testPatterns maps videotestsrc pattern nicks to their enum values.
var testPatterns = map[string]int{
	"smpte": 0, "snow": 1, "black": 2, "white": 3, "red": 4, "green": 5,
	"blue": 6, "checkers-1": 7, "checkers-2": 8, "checkers-4": 9,
	"checkers-8": 10, "circular": 11, "blink": 12, "smpte75": 13,
	"zone-plate": 14, "gamut": 15, "chroma-zone-plate": 16,
	"solid-color": 17, "ball": 18, "smpte100": 19, "bar": 20,
	"pinwheel": 21, "spokes": 22, "gradient": 23, "colors": 24,
}

// PatternValue resolves a videotestsrc pattern nick.
func PatternValue(name string) (int, error) {
	v, ok := testPatterns[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown test pattern %q", name)
	}
	return v, nil
}

func newElement(factory string, props map[string]interface{}) (*gst.Element, error) {
	el, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", factory, err)
	}
	for k, v := range props {
		el.SetProperty(k, v)
	}
	return el, nil
}

func describeSource(cfg Config) string {
	if cfg.URI == "" {
		if cfg.Pattern == "" {
			return "videotestsrc"
		}
		return "videotestsrc pattern=" + cfg.Pattern
	}
	return cfg.URI
}
