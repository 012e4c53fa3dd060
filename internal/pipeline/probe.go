package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// BufferFunc receives a mapped frame. pix aliases the GStreamer buffer and
// is only valid during the call.
type BufferFunc func(pix []byte, f Format, pts time.Duration)

// ErrorFunc receives buffers that could not be resolved. The buffer has
// already been passed downstream unmodified.
type ErrorFunc func(err error)

// InstallProbe attaches a buffer probe to the src pad of the filter element.
// Each buffer is mapped read-write and handed to onBuffer, which may rewrite
// it in place before it continues downstream.
func InstallProbe(filter *gst.Element, onBuffer BufferFunc, onError ErrorFunc) error {
	srcPad := filter.GetStaticPad("src")
	if srcPad == nil {
		return fmt.Errorf("failed to get src pad from %s", filter.GetName())
	}

	srcPad.AddProbe(gst.PadProbeTypeBuffer, func(pad *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		buffer := info.GetBuffer()
		if buffer == nil {
			return gst.PadProbeOK
		}

		f, err := ParseCaps(pad.GetCurrentCaps())
		if err != nil {
			onError(err)
			return gst.PadProbeOK
		}

		mapInfo := buffer.Map(gst.MapRead|gst.MapWrite)
		if mapInfo == nil {
			onError(ErrNotWritable)
			return gst.PadProbeOK
		}
		defer buffer.Unmap()

		data := mapInfo.AsUint8Slice()
		if len(data) < f.Size() {
			onError(fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(data), f.Size()))
			return gst.PadProbeOK
		}

		onBuffer(data, f, buffer.PresentationTimestamp())
		return gst.PadProbeOK
	})

	slog.Debug("pipeline: binning probe installed", "element", filter.GetName())
	return nil
}

// PullFrame pulls the next sample from an appsink and returns a packed copy
// of its pixels. A nil slice with nil error means the sample carried no
// usable buffer and should be skipped.
func PullFrame(sink *app.Sink) ([]byte, Format, time.Duration, error) {
	sample := sink.PullSample()
	if sample == nil {
		return nil, Format{}, 0, nil
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, Format{}, 0, nil
	}

	f, err := ParseCaps(sample.GetCaps())
	if err != nil {
		return nil, Format{}, 0, err
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, Format{}, 0, fmt.Errorf("failed to map buffer")
	}
	defer buffer.Unmap()

	data := mapInfo.AsUint8Slice()
	if len(data) < f.Size() {
		return nil, Format{}, 0, fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(data), f.Size())
	}

	return Pack(data, f, f.Width, f.Height), f, buffer.PresentationTimestamp(), nil
}
