package telemetry

import "sync/atomic"

// Counters are the monotonically increasing frame counters of one engine.
type Counters struct {
	Processed    atomic.Uint64
	Skipped      atomic.Uint64
	Independent  atomic.Uint64
	Chroma       atomic.Uint64
	Plain        atomic.Uint64
	Resized      atomic.Uint64
	FrameErrors  atomic.Uint64
	FormatErrors atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Processed    uint64
	Skipped      uint64
	Independent  uint64
	Chroma       uint64
	Plain        uint64
	Resized      uint64
	FrameErrors  uint64
	FormatErrors uint64
}

// Snapshot loads every counter.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Processed:    c.Processed.Load(),
		Skipped:      c.Skipped.Load(),
		Independent:  c.Independent.Load(),
		Chroma:       c.Chroma.Load(),
		Plain:        c.Plain.Load(),
		Resized:      c.Resized.Load(),
		FrameErrors:  c.FrameErrors.Load(),
		FormatErrors: c.FormatErrors.Load(),
	}
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.Processed.Store(0)
	c.Skipped.Store(0)
	c.Independent.Store(0)
	c.Chroma.Store(0)
	c.Plain.Store(0)
	c.Resized.Store(0)
	c.FrameErrors.Store(0)
	c.FormatErrors.Store(0)
}
