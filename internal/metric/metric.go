package metric

import (
	"context"
	"time"
)

// Sample is one accepted (κ, ε) observation. Kappa and Epsilon are clamped to
// [0,1] before a Sample is constructed; Sequence strictly increases per
// monitor instance.
type Sample struct {
	Kappa     float64   `json:"kappa"`
	Epsilon   float64   `json:"epsilon"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
}

// Provider is the pluggable source of raw (κ, ε) pairs.
//
// Sample must be side-effect-free beyond internal bookkeeping and should
// return well before the monitor cadence interval. The loop bounds every call
// with a per-cycle timeout; a provider that blocks past it is treated as a
// per-cycle fault, not a crash.
type Provider interface {
	Sample(ctx context.Context) (kappa, epsilon float64, err error)
}

// Clamp01 restricts v to the range [0, 1]. Out-of-range provider output is a
// contract violation, not a crash condition; it is clamped on intake.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
