// Package telemetry holds the per-frame processing metrics of the filter.
package telemetry

import (
	"sort"
	"sync/atomic"
	"time"
)

// WindowSize is the number of samples kept by a LatencyWindow.
const WindowSize = 100

// LatencyWindow is a fixed-size ring buffer of latency samples in
// milliseconds. It is a plain value and not safe for concurrent mutation;
// share it through a Tracker.
type LatencyWindow struct {
	Samples [WindowSize]float64
	Index   int
	Count   int
}

// AddSample records one sample, overwriting the oldest once full.
func (w *LatencyWindow) AddSample(ms float64) {
	w.Samples[w.Index] = ms
	w.Index = (w.Index + 1) % len(w.Samples)
	if w.Count < len(w.Samples) {
		w.Count++
	}
}

// GetStats returns mean, p95 and max over the recorded samples.
// An empty window yields zeros.
func (w *LatencyWindow) GetStats() (mean, p95, max float64) {
	if w.Count == 0 {
		return 0, 0, 0
	}

	sorted := make([]float64, w.Count)
	copy(sorted, w.Samples[:w.Count])
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean = sum / float64(w.Count)
	p95 = sorted[int(0.95*float64(w.Count-1))]
	max = sorted[w.Count-1]
	return mean, p95, max
}

// Tracker publishes a LatencyWindow through an atomic pointer using
// copy-on-write, so readers never block the frame path.
type Tracker struct {
	window atomic.Pointer[LatencyWindow]
}

// NewTracker returns a tracker with an empty window.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.window.Store(&LatencyWindow{})
	return t
}

// Observe records a duration.
func (t *Tracker) Observe(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	for {
		old := t.window.Load()
		next := *old
		next.AddSample(ms)
		if t.window.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Snapshot returns mean, p95 and max in milliseconds.
func (t *Tracker) Snapshot() (mean, p95, max float64) {
	return t.window.Load().GetStats()
}

// Reset discards all samples.
func (t *Tracker) Reset() {
	t.window.Store(&LatencyWindow{})
}
