package window

import (
	"math"
	"testing"

	"github.com/emergenceguard/emergenceguard/internal/metric"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sample(seq uint64, k, e float64) metric.Sample {
	return metric.Sample{Sequence: seq, Kappa: k, Epsilon: e}
}

func TestEmptyWindow(t *testing.T) {
	w := New(10)

	if w.Len() != 0 {
		t.Errorf("Len = %d, want 0", w.Len())
	}
	if w.MeanKappa() != 0 {
		t.Errorf("MeanKappa on empty = %v, want 0", w.MeanKappa())
	}
	if w.MeanEpsilon() != 0 {
		t.Errorf("MeanEpsilon on empty = %v, want 0", w.MeanEpsilon())
	}
	if _, ok := w.Last(); ok {
		t.Error("Last on empty: got ok = true, want false")
	}
	if snap := w.Snapshot(); len(snap) != 0 {
		t.Errorf("Snapshot on empty: got %d samples, want 0", len(snap))
	}
}

func TestPushAndMeans(t *testing.T) {
	w := New(10)
	w.Push(sample(1, 0.234, 0.156))
	w.Push(sample(2, 0.445, 0.289))

	if w.Len() != 2 {
		t.Fatalf("Len = %d, want 2", w.Len())
	}
	if got := w.MeanKappa(); !almostEqual(got, 0.3395) {
		t.Errorf("MeanKappa = %v, want 0.3395", got)
	}
	if got := w.MeanEpsilon(); !almostEqual(got, 0.2225) {
		t.Errorf("MeanEpsilon = %v, want 0.2225", got)
	}
}

func TestFIFOEviction(t *testing.T) {
	w := New(3)
	for i := 1; i <= 4; i++ {
		w.Push(sample(uint64(i), float64(i)/10, 0))
	}

	// Oldest (seq 1) evicted; window holds 2, 3, 4.
	if w.Len() != 3 {
		t.Fatalf("Len after overflow = %d, want 3", w.Len())
	}
	snap := w.Snapshot()
	if snap[0].Sequence != 2 {
		t.Errorf("oldest retained seq = %d, want 2", snap[0].Sequence)
	}
	if snap[2].Sequence != 4 {
		t.Errorf("newest retained seq = %d, want 4", snap[2].Sequence)
	}

	// Mean reflects only retained samples: (0.2+0.3+0.4)/3.
	if got := w.MeanKappa(); !almostEqual(got, 0.3) {
		t.Errorf("MeanKappa after eviction = %v, want 0.3", got)
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	w := New(5)
	for i := 0; i < 100; i++ {
		w.Push(sample(uint64(i), 0.5, 0.5))
		if w.Len() > 5 {
			t.Fatalf("Len = %d exceeds capacity 5 after %d pushes", w.Len(), i+1)
		}
	}
	if w.Len() != 5 {
		t.Errorf("Len = %d, want 5", w.Len())
	}
}

func TestLast(t *testing.T) {
	w := New(3)
	w.Push(sample(1, 0.1, 0.2))
	w.Push(sample(2, 0.3, 0.4))

	last, ok := w.Last()
	if !ok {
		t.Fatal("Last: got ok = false")
	}
	if last.Sequence != 2 {
		t.Errorf("Last.Sequence = %d, want 2", last.Sequence)
	}
}

func TestSnapshot_Decoupled(t *testing.T) {
	w := New(3)
	w.Push(sample(1, 0.1, 0.1))

	snap := w.Snapshot()
	w.Push(sample(2, 0.9, 0.9))

	// The earlier snapshot must not observe the later push.
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}
	if snap[0].Sequence != 1 {
		t.Errorf("snapshot[0].Sequence = %d, want 1", snap[0].Sequence)
	}

	// Mutating the snapshot must not affect the window.
	snap[0].Kappa = 99
	if got := w.Snapshot()[0].Kappa; got != 0.1 {
		t.Errorf("window sample mutated through snapshot: kappa = %v", got)
	}
}

func TestCapacityOne(t *testing.T) {
	w := New(1)
	w.Push(sample(1, 0.2, 0.2))
	w.Push(sample(2, 0.8, 0.8))

	if w.Len() != 1 {
		t.Fatalf("Len = %d, want 1", w.Len())
	}
	if got := w.MeanKappa(); !almostEqual(got, 0.8) {
		t.Errorf("MeanKappa = %v, want 0.8", got)
	}
}
