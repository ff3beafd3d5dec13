package window

import "github.com/emergenceguard/emergenceguard/internal/metric"

// Window is a fixed-capacity FIFO buffer of the most recent samples.
//
// Window is not safe for concurrent use on its own: all mutation is serialized
// through the monitor loop, and concurrent readers receive copies via
// Snapshot.
type Window struct {
	capacity int
	samples  []metric.Sample
}

// New creates a Window holding at most capacity samples.
// Capacity must be positive; config validation enforces this before
// construction.
func New(capacity int) *Window {
	return &Window{
		capacity: capacity,
		samples:  make([]metric.Sample, 0, capacity),
	}
}

// Push appends s, evicting the oldest sample when the window is full.
func (w *Window) Push(s metric.Sample) {
	if len(w.samples) >= w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, s)
}

// Len returns the number of samples currently retained.
func (w *Window) Len() int {
	return len(w.samples)
}

// Capacity returns the fixed capacity set at construction.
func (w *Window) Capacity() int {
	return w.capacity
}

// MeanKappa returns the average κ over retained samples, or 0 when empty.
func (w *Window) MeanKappa() float64 {
	return w.mean(func(s metric.Sample) float64 { return s.Kappa })
}

// MeanEpsilon returns the average ε over retained samples, or 0 when empty.
func (w *Window) MeanEpsilon() float64 {
	return w.mean(func(s metric.Sample) float64 { return s.Epsilon })
}

// Last returns the newest sample and true, or a zero Sample and false when
// the window is empty.
func (w *Window) Last() (metric.Sample, bool) {
	if len(w.samples) == 0 {
		return metric.Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// Snapshot returns a copy of the retained samples, oldest first. The copy is
// decoupled from further mutation and safe to hand to concurrent readers.
func (w *Window) Snapshot() []metric.Sample {
	out := make([]metric.Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

func (w *Window) mean(f func(metric.Sample) float64) float64 {
	if len(w.samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range w.samples {
		total += f(s)
	}
	return total / float64(len(w.samples))
}
