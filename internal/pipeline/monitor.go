package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrEndOfStream is returned by Monitor when the pipeline reaches EOS.
var ErrEndOfStream = errors.New("end of stream")

// Monitor polls the pipeline bus until ctx is cancelled (nil), EOS
// (ErrEndOfStream) or an error message (classified and counted). onPlaying
// runs each time the pipeline itself reaches PLAYING.
func Monitor(ctx context.Context, pipeline *gst.Pipeline, counters *ErrorCounters, onPlaying func()) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("pipeline: context cancelled, stopping bus monitor")
			return nil
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("pipeline: end of stream received")
			return ErrEndOfStream

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			if counters != nil {
				counters.Add(category)
			}

			slog.Error("pipeline: bus error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
			)
			return fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			slog.Warn("pipeline: bus warning", "warning", gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() != pipeline.GetName() {
				continue
			}
			old, state := msg.ParseStateChanged()
			slog.Debug("pipeline: state changed", "from", old, "to", state)
			if state == gst.StatePlaying && onPlaying != nil {
				onPlaying()
			}
		}
	}
}
