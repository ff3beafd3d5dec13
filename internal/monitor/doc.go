// Package monitor runs the sampling loop: poll the provider on a fixed
// cadence, clamp and sequence the sample, push it through the rolling
// window, evaluate it against the thresholds, and hand the verdict to the
// emergency controller. A provider call that errors or overruns its
// per-cycle timeout is counted as a fault and the cycle is skipped; the
// loop itself never stops on provider trouble.
package monitor
