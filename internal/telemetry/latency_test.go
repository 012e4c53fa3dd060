package telemetry

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestLatencyWindow_Invariants(t *testing.T) {
	t.Run("bounded", func(t *testing.T) {
		w := &LatencyWindow{}
		for i := 0; i < 3*WindowSize+7; i++ {
			w.AddSample(float64(i))
			if w.Count > WindowSize {
				t.Fatalf("Count=%d exceeds %d at i=%d", w.Count, WindowSize, i)
			}
			if w.Index < 0 || w.Index >= WindowSize {
				t.Fatalf("Index=%d out of range at i=%d", w.Index, i)
			}
		}
		if w.Count != WindowSize {
			t.Errorf("Count=%d after overflow, want %d", w.Count, WindowSize)
		}
		t.Logf("✅ ring buffer capped at %d samples", w.Count)
	})

	t.Run("ordering", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		w := &LatencyWindow{}
		for i := 0; i < WindowSize; i++ {
			w.AddSample(rng.Float64() * 40)
		}
		mean, p95, max := w.GetStats()
		if mean > max || p95 > max {
			t.Errorf("mean=%.3f p95=%.3f must not exceed max=%.3f", mean, p95, max)
		}
	})

	t.Run("skewed", func(t *testing.T) {
		w := &LatencyWindow{}
		for i := 0; i < 90; i++ {
			w.AddSample(1 + float64(i%5))
		}
		for i := 0; i < 10; i++ {
			w.AddSample(30 + float64(i))
		}
		mean, p95, _ := w.GetStats()
		if p95 < mean {
			t.Errorf("p95=%.3f < mean=%.3f on right-skewed samples", p95, mean)
		}
	})

	t.Run("empty", func(t *testing.T) {
		w := &LatencyWindow{}
		if mean, p95, max := w.GetStats(); mean != 0 || p95 != 0 || max != 0 {
			t.Errorf("empty window: %v %v %v", mean, p95, max)
		}
	})

	t.Run("single", func(t *testing.T) {
		w := &LatencyWindow{}
		w.AddSample(3.25)
		if mean, p95, max := w.GetStats(); mean != 3.25 || p95 != 3.25 || max != 3.25 {
			t.Errorf("single sample: %v %v %v", mean, p95, max)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		w := &LatencyWindow{}
		for i := 0; i < WindowSize; i++ {
			w.AddSample(1)
		}
		for i := 0; i < WindowSize/2; i++ {
			w.AddSample(9)
		}
		mean, _, max := w.GetStats()
		if max != 9 || math.Abs(mean-5) > 1e-9 {
			t.Errorf("after half overwrite: mean=%.3f max=%.3f, want 5 and 9", mean, max)
		}
	})
}

func TestLatencyWindow_P95(t *testing.T) {
	seq := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = float64(i + 1)
		}
		return s
	}

	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"twenty ascending", seq(20), 19},
		{"hundred ascending", seq(100), 95},
		{"constant", []float64{7, 7, 7, 7}, 7},
		{"two", []float64{1, 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &LatencyWindow{}
			for _, s := range tt.samples {
				w.AddSample(s)
			}
			if _, p95, _ := w.GetStats(); p95 != tt.want {
				t.Errorf("p95 = %v, want %v", p95, tt.want)
			}
		})
	}
}

func TestTracker_ConcurrentObserve(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				tr.Observe(2 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	mean, p95, max := tr.Snapshot()
	if mean != 2 || p95 != 2 || max != 2 {
		t.Errorf("snapshot = %v/%v/%v, want 2ms each", mean, p95, max)
	}
	if n := tr.window.Load().Count; n != 80 {
		t.Errorf("Count = %d, want 80 (no lost updates)", n)
	}

	tr.Reset()
	if mean, _, _ := tr.Snapshot(); mean != 0 {
		t.Errorf("mean after Reset = %v", mean)
	}
}

func TestCounters_SnapshotAndReset(t *testing.T) {
	var c Counters
	c.Processed.Add(3)
	c.Chroma.Add(2)
	c.FormatErrors.Add(1)

	s := c.Snapshot()
	if s.Processed != 3 || s.Chroma != 2 || s.FormatErrors != 1 || s.Independent != 0 {
		t.Errorf("unexpected snapshot %+v", s)
	}

	c.Reset()
	if s := c.Snapshot(); s != (CounterSnapshot{}) {
		t.Errorf("after Reset: %+v", s)
	}
}
