// Package evaluate maps a single sample to a safety verdict.
//
// Evaluate is a pure function of one Sample and the immutable Thresholds:
// CRITICAL_BOTH when both κ and ε exceed their bounds, CRITICAL_STRESS /
// CRITICAL_ENTROPY when only one does, WARNING when either metric is within
// the configured margin of its bound without crossing it, SAFE otherwise.
package evaluate
