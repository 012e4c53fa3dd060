package binningfilter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/binning"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/gamma"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/telemetry"
)

// Engine applies the configured binning kernel to frames in place.
//
// The gamma tables are built once and shared read-only. The configuration
// is held behind an atomic pointer and loaded once per frame, so SetConfig
// may be called from any goroutine while frames are in flight: a frame
// always completes with the configuration it started with.
//
// Process is safe to call concurrently on distinct buffers.
type Engine struct {
	tables  *gamma.Tables
	cfg     atomic.Pointer[Config]
	started time.Time

	counters telemetry.Counters
	latency  *telemetry.Tracker
}

// NewEngine validates cfg and builds the gamma tables.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		tables:  gamma.Build(gamma.DefaultGamma),
		started: time.Now(),
		latency: telemetry.NewTracker(),
	}
	e.cfg.Store(&cfg)

	slog.Info("binning-filter: engine created",
		"algorithm", cfg.Algorithm.String(),
		"binsize", cfg.BinSize,
		"resize", cfg.Resize,
		"gamma", e.tables.Gamma,
	)

	return e, nil
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	return *e.cfg.Load()
}

// SetConfig validates and atomically installs cfg. On error the active
// configuration is unchanged.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		slog.Warn("binning-filter: config rejected", "error", err)
		return err
	}

	old := e.cfg.Swap(&cfg)

	slog.Info("binning-filter: config updated",
		"algorithm", cfg.Algorithm.String(),
		"binsize", cfg.BinSize,
		"resize", cfg.Resize,
		"black", cfg.Black,
		"contrast", cfg.Contrast,
		"previous_algorithm", old.Algorithm.String(),
		"previous_binsize", old.BinSize,
	)
	return nil
}

// Update applies a partial change on top of the active configuration.
// It returns the configuration that was installed.
func (e *Engine) Update(p Patch) (Config, error) {
	for {
		cur := e.cfg.Load()
		next := cur.Apply(p)
		if err := next.Validate(); err != nil {
			return *cur, err
		}
		if e.cfg.CompareAndSwap(cur, &next) {
			slog.Info("binning-filter: config patched",
				"algorithm", next.Algorithm.String(),
				"binsize", next.BinSize,
				"resize", next.Resize,
				"black", next.Black,
				"contrast", next.Contrast,
			)
			return next, nil
		}
	}
}

// Process bins buf in place according to the active configuration.
//
// Invalid buffers are reported and left untouched. In test mode the kernel
// is chosen from the presentation timestamp: even seconds use independent
// binning, odd seconds use chroma binning.
func (e *Engine) Process(buf *FrameBuffer) (Result, error) {
	cfg := e.cfg.Load()

	if err := buf.Validate(); err != nil {
		e.counters.FrameErrors.Add(1)
		return Result{}, err
	}

	alg := cfg.Algorithm
	if alg == AlgorithmTest {
		alg = alternate(buf.PTS)
	}

	black, contrast := cfg.Physical(buf.Order)
	p := binning.NewParams(cfg.BinSize, black, contrast)
	img := binning.Image{Pix: buf.Data, Width: buf.Width, Height: buf.Height, Stride: buf.Stride}

	res := Result{Algorithm: alg, Width: buf.Width, Height: buf.Height}

	if p.Identity() {
		e.counters.Skipped.Add(1)
		res.Skipped = true
		return res, nil
	}

	start := time.Now()
	var err error

	switch alg {
	case AlgorithmIndependent:
		if cfg.Resize {
			res.Width, res.Height, err = binning.Resize(img, p, e.tables)
			e.counters.Resized.Add(1)
		} else {
			err = binning.Independent(img, p, e.tables)
		}
		e.counters.Independent.Add(1)
	case AlgorithmChroma:
		err = binning.Chroma(img, p)
		e.counters.Chroma.Add(1)
	case AlgorithmPlain:
		err = binning.Plain(img, p)
		e.counters.Plain.Add(1)
	default:
		err = fmt.Errorf("%w: unknown algorithm %d", ErrInvalidConfig, int(alg))
	}

	if err != nil {
		e.counters.FrameErrors.Add(1)
		if !errors.Is(err, ErrInvalidConfig) {
			err = fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		return Result{}, err
	}

	res.Duration = time.Since(start)
	e.latency.Observe(res.Duration)
	e.counters.Processed.Add(1)

	return res, nil
}

// ReportFormatError records a stream format the host could not resolve.
func (e *Engine) ReportFormatError(err error) {
	e.counters.FormatErrors.Add(1)
	slog.Warn("binning-filter: frame passed through unprocessed",
		"error", err,
		"format_errors", e.counters.FormatErrors.Load(),
	)
}

// Stats returns a snapshot of engine telemetry.
func (e *Engine) Stats() Stats {
	cfg := e.cfg.Load()
	c := e.counters.Snapshot()
	mean, p95, max := e.latency.Snapshot()

	return Stats{
		Algorithm:       cfg.Algorithm.String(),
		BinSize:         cfg.BinSize,
		Resize:          cfg.Resize,
		FramesProcessed: c.Processed,
		FramesSkipped:   c.Skipped,
		Independent:     c.Independent,
		Chroma:          c.Chroma,
		Plain:           c.Plain,
		Resized:         c.Resized,
		FrameErrors:     c.FrameErrors,
		FormatErrors:    c.FormatErrors,
		LatencyMeanMS:   mean,
		LatencyP95MS:    p95,
		LatencyMaxMS:    max,
		Uptime:          time.Since(e.started),
	}
}

// ResetStats zeroes counters and latency samples.
func (e *Engine) ResetStats() {
	e.counters.Reset()
	e.latency.Reset()
	slog.Info("binning-filter: stats reset")
}

// alternate picks the test-mode kernel for a presentation timestamp.
func alternate(pts time.Duration) Algorithm {
	if pts < 0 {
		pts = 0
	}
	if int64(pts/time.Second)%2 == 0 {
		return AlgorithmIndependent
	}
	return AlgorithmChroma
}
