package binningfilter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/fanout"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/pipeline"
)

// FilterConfig configures a Filter.
type FilterConfig struct {
	Pipeline  pipeline.Config
	Binning   Config
	Reconnect pipeline.ReconnectConfig
}

// FilterStats combines engine, host and distribution telemetry.
type FilterStats struct {
	Engine     Stats
	Frames     uint64
	Reconnects uint32
	BusErrors  map[string]uint64
	Fanout     fanout.Stats
}

// Filter hosts the Engine inside a GStreamer pipeline. Each buffer leaving
// the identity element is binned in place; processed frames are offered to
// subscribers when any are attached.
type Filter struct {
	cfg      FilterConfig
	engine   *Engine
	supplier *fanout.Supplier

	seq       atomic.Uint64
	busErrors pipeline.ErrorCounters
	reconnect pipeline.ReconnectState

	// last crop margins pushed to videocrop, packed as right<<32 | bottom
	crop atomic.Uint64

	// scratch buffers for frames whose rows carry alignment padding
	scratch sync.Pool

	mu     sync.Mutex
	elems  *pipeline.Elements
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

// NewFilter validates cfg and creates the engine. The pipeline is built by
// Start.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	if _, err := ParseChannelOrder(cfg.Pipeline.Format); err != nil {
		return nil, err
	}
	if cfg.Reconnect.MaxRetries == 0 && cfg.Reconnect.RetryDelay == 0 {
		cfg.Reconnect = pipeline.DefaultReconnectConfig()
	}

	engine, err := NewEngine(cfg.Binning)
	if err != nil {
		return nil, fmt.Errorf("binning-filter: %w", err)
	}

	return &Filter{
		cfg:      cfg,
		engine:   engine,
		supplier: fanout.New(),
	}, nil
}

// Engine returns the filter's engine, for reconfiguration and stats.
func (f *Filter) Engine() *Engine {
	return f.engine
}

// Start builds the pipeline and runs it in the background, restarting it
// with exponential backoff after errors. Done is closed when it stops.
func (f *Filter) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return fmt.Errorf("binning-filter: filter already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := f.supplier.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("binning-filter: %w", err)
	}
	f.cancel = cancel
	f.done = make(chan struct{})

	slog.Info("binning-filter: starting",
		"source", f.cfg.Pipeline.URI,
		"format", f.cfg.Pipeline.Format,
		"sink", f.cfg.Pipeline.Sink,
		"live", f.cfg.Pipeline.Live(),
	)

	go func() {
		defer close(f.done)
		err := pipeline.RunWithReconnect(runCtx, f.session, f.cfg.Reconnect, &f.reconnect)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			slog.Error("binning-filter: pipeline stopped", "error", err)
		}
		f.mu.Lock()
		f.runErr = err
		f.mu.Unlock()
	}()

	return nil
}

// Done is closed when the pipeline has stopped for good: end of a finite
// source, retries exhausted, or Stop.
func (f *Filter) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Err returns the error that stopped the pipeline, if any.
func (f *Filter) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runErr
}

// Stop shuts the pipeline down and releases subscribers. Safe to call more
// than once.
func (f *Filter) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("binning-filter: timeout waiting for pipeline to stop")
	}

	return f.supplier.Stop()
}

// Subscribe registers a consumer of processed frames. The returned function
// blocks until a frame is available and returns nil after Unsubscribe or
// Stop.
func (f *Filter) Subscribe(id string) func() *fanout.Frame {
	return f.supplier.Subscribe(id)
}

// Unsubscribe removes a consumer.
func (f *Filter) Unsubscribe(id string) {
	f.supplier.Unsubscribe(id)
}

// Stats returns a snapshot of filter telemetry.
func (f *Filter) Stats() FilterStats {
	return FilterStats{
		Engine:     f.engine.Stats(),
		Frames:     f.seq.Load(),
		Reconnects: f.reconnect.Reconnects.Load(),
		BusErrors:  f.busErrors.Snapshot(),
		Fanout:     f.supplier.Stats(),
	}
}

// session runs one pipeline lifetime.
func (f *Filter) session(ctx context.Context) error {
	elems, err := pipeline.CreatePipeline(f.cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.DestroyPipeline(elems); err != nil {
			slog.Warn("binning-filter: pipeline teardown failed", "error", err)
		}
		f.mu.Lock()
		f.elems = nil
		f.mu.Unlock()
	}()

	f.crop.Store(0)
	f.mu.Lock()
	f.elems = elems
	f.mu.Unlock()

	if err := pipeline.InstallProbe(elems.Filter, f.onBuffer, f.onFormatError); err != nil {
		return err
	}

	if elems.AppSink != nil {
		elems.AppSink.SetCallbacks(&app.SinkCallbacks{
			NewSampleFunc: f.onSample,
		})
	}

	if err := elems.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	err = pipeline.Monitor(ctx, elems.Pipeline, &f.busErrors, f.reconnect.Reset)
	if errors.Is(err, pipeline.ErrEndOfStream) && !f.cfg.Pipeline.Live() {
		slog.Info("binning-filter: source finished", "frames", f.seq.Load())
		return nil
	}
	return err
}

// onBuffer runs on the streaming thread for every buffer leaving identity.
func (f *Filter) onBuffer(pix []byte, fm pipeline.Format, pts time.Duration) {
	order, err := ParseChannelOrder(fm.Name)
	if err != nil {
		f.onFormatError(err)
		return
	}

	seq := f.seq.Add(1)
	buf := &FrameBuffer{
		Data:    pix,
		Width:   fm.Width,
		Height:  fm.Height,
		Stride:  fm.Width * 3,
		Order:   order,
		PTS:     pts,
		Seq:     seq,
		TraceID: uuid.New().String(),
	}

	// Rows padded to 4-byte alignment are repacked around the kernel.
	padded := fm.Stride != buf.Stride
	var scratch *[]byte
	if padded {
		scratch = f.packed(buf.Stride * fm.Height)
		buf.Data = *scratch
		for y := 0; y < fm.Height; y++ {
			copy(buf.Data[y*buf.Stride:(y+1)*buf.Stride], pix[y*fm.Stride:])
		}
		defer f.scratch.Put(scratch)
	}

	res, err := f.engine.Process(buf)
	if err != nil {
		slog.Warn("binning-filter: frame not processed",
			"error", err,
			"seq", seq,
			"trace_id", buf.TraceID,
		)
		return
	}

	if padded && !res.Skipped {
		for y := 0; y < fm.Height; y++ {
			copy(pix[y*fm.Stride:], buf.Data[y*buf.Stride:(y+1)*buf.Stride])
		}
	}

	f.updateCrop(fm.Width-res.Width, fm.Height-res.Height)

	slog.Debug("binning-filter: frame processed",
		"seq", seq,
		"algorithm", res.Algorithm.String(),
		"skipped", res.Skipped,
		"out", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"duration", res.Duration,
		"trace_id", buf.TraceID,
	)

	if f.cfg.Pipeline.Sink == pipeline.SinkApp || !f.supplier.HasSubscribers() {
		return
	}
	f.supplier.Publish(&fanout.Frame{
		Data:      pipeline.Pack(buf.Data, pipeline.Format{Stride: buf.Stride}, res.Width, res.Height),
		Width:     res.Width,
		Height:    res.Height,
		Order:     order.String(),
		Algorithm: res.Algorithm.String(),
		PTS:       pts,
		Timestamp: time.Now(),
		SourceSeq: seq,
		TraceID:   buf.TraceID,
	})
}

// onSample forwards frames reaching an appsink, already cropped.
func (f *Filter) onSample(sink *app.Sink) gst.FlowReturn {
	data, fm, pts, err := pipeline.PullFrame(sink)
	if err != nil {
		slog.Warn("binning-filter: appsink frame dropped", "error", err)
		return gst.FlowOK
	}
	if data == nil || !f.supplier.HasSubscribers() {
		return gst.FlowOK
	}

	f.supplier.Publish(&fanout.Frame{
		Data:      data,
		Width:     fm.Width,
		Height:    fm.Height,
		Order:     fm.Name,
		Algorithm: f.engine.Config().Algorithm.String(),
		PTS:       pts,
		Timestamp: time.Now(),
		SourceSeq: f.seq.Load(),
	})
	return gst.FlowOK
}

func (f *Filter) onFormatError(err error) {
	f.engine.ReportFormatError(fmt.Errorf("%w: %v", ErrFormatUnresolved, err))
}

// updateCrop pushes new margins to videocrop when they change.
func (f *Filter) updateCrop(right, bottom int) {
	packed := uint64(right)<<32 | uint64(uint32(bottom))
	if f.crop.Swap(packed) == packed {
		return
	}

	f.mu.Lock()
	elems := f.elems
	f.mu.Unlock()

	elems.SetCrop(right, bottom)
	slog.Info("binning-filter: output crop changed", "right", right, "bottom", bottom)
}

func (f *Filter) packed(size int) *[]byte {
	if v, ok := f.scratch.Get().(*[]byte); ok && cap(*v) >= size {
		*v = (*v)[:size]
		return v
	}
	b := make([]byte, size)
	return &b
}
