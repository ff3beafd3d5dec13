package evaluate

import "github.com/emergenceguard/emergenceguard/internal/metric"

// Verdict classifies a single sample against the configured thresholds.
type Verdict string

// Verdict values, ordered by severity.
const (
	VerdictSafe            Verdict = "SAFE"
	VerdictWarning         Verdict = "WARNING"
	VerdictCriticalStress  Verdict = "CRITICAL_STRESS"
	VerdictCriticalEntropy Verdict = "CRITICAL_ENTROPY"
	VerdictCriticalBoth    Verdict = "CRITICAL_BOTH"
)

// Critical reports whether v demands an emergency shutdown.
func (v Verdict) Critical() bool {
	switch v {
	case VerdictCriticalStress, VerdictCriticalEntropy, VerdictCriticalBoth:
		return true
	}
	return false
}

// Default threshold values. κ and ε above these bounds are critical.
const (
	DefaultKappaThreshold   = 0.80
	DefaultEpsilonThreshold = 0.70
	DefaultWarningMargin    = 0.90
)

// Thresholds is the immutable evaluation configuration, supplied at
// construction and never mutated at runtime.
type Thresholds struct {
	// Kappa is the stress bound: kappa > Kappa is critical.
	Kappa float64

	// Epsilon is the entropy bound: epsilon > Epsilon is critical.
	Epsilon float64

	// WarningMargin is the fraction of a bound at which a metric is
	// considered elevated. A metric at or above margin*bound without
	// crossing the bound yields WARNING.
	WarningMargin float64
}

// Default returns the standard thresholds (κ≤0.8, ε≤0.7, margin 0.9).
func Default() Thresholds {
	return Thresholds{
		Kappa:         DefaultKappaThreshold,
		Epsilon:       DefaultEpsilonThreshold,
		WarningMargin: DefaultWarningMargin,
	}
}

// Evaluate maps one sample to a Verdict. It is pure and deterministic: the
// same sample and thresholds always produce the same verdict.
func Evaluate(s metric.Sample, t Thresholds) Verdict {
	stress := s.Kappa > t.Kappa
	entropy := s.Epsilon > t.Epsilon

	switch {
	case stress && entropy:
		return VerdictCriticalBoth
	case stress:
		return VerdictCriticalStress
	case entropy:
		return VerdictCriticalEntropy
	}

	if s.Kappa >= t.WarningMargin*t.Kappa || s.Epsilon >= t.WarningMargin*t.Epsilon {
		return VerdictWarning
	}
	return VerdictSafe
}
