package provider

import (
	"context"

	"github.com/emergenceguard/emergenceguard/internal/metric"
)

// Fallback weighting coefficients. These are approximations and are not
// authoritative; the privileged kernel, when present, supersedes them. Each
// set sums to 1.0.
const (
	kappaWeightCPU    = 0.3
	kappaWeightMemory = 0.3
	kappaWeightNet    = 0.2
	kappaWeightErrors = 0.2

	epsilonWeightVariance  = 0.4
	epsilonWeightEntropy   = 0.3
	epsilonWeightDeviation = 0.2
	epsilonWeightRecursion = 0.1
)

// Fallback is the deterministic stand-in metric provider used when no
// privileged kernel is available. It combines environment signals into κ and
// ε with fixed weights; output is always in [0,1].
type Fallback struct {
	src SignalSource
}

// NewFallback returns a Fallback reading from src.
func NewFallback(src SignalSource) *Fallback {
	return &Fallback{src: src}
}

// Sample senses the environment and derives one (κ, ε) pair.
func (f *Fallback) Sample(ctx context.Context) (float64, float64, error) {
	sig, err := f.src.Sense(ctx)
	if err != nil {
		return 0, 0, err
	}

	kappa := metric.Clamp01(
		kappaWeightCPU*sig[SignalCPULoad] +
			kappaWeightMemory*sig[SignalMemoryUsage] +
			kappaWeightNet*sig[SignalNetworkIO] +
			kappaWeightErrors*sig[SignalErrorRate])

	epsilon := metric.Clamp01(
		epsilonWeightVariance*sig[SignalResponseVariance] +
			epsilonWeightEntropy*sig[SignalTokenEntropy] +
			epsilonWeightDeviation*sig[SignalPatternDeviation] +
			epsilonWeightRecursion*sig[SignalRecursionDepth])

	return kappa, epsilon, nil
}
