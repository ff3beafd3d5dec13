package provider

import (
	"context"
	"fmt"
	"math"
	"plugin"
)

// ArtifactName is the well-known filename of the privileged kernel plugin.
const ArtifactName = "emergence_kernel.so"

// SymbolName is the exported symbol the kernel must provide:
// a func() (float64, float64) returning one (κ, ε) pair.
const SymbolName = "Sample"

// kernelFunc is the required signature of the kernel's Sample symbol.
type kernelFunc = func() (float64, float64)

// symbolLookup opens the plugin at path and returns its Sample symbol.
// Abstracted so resolver tests can inject fakes without building real plugins.
type symbolLookup func(path string) (any, error)

// openKernelSymbol is the production symbolLookup backed by the plugin package.
func openKernelSymbol(path string) (any, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin: %w", err)
	}
	sym, err := p.Lookup(SymbolName)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", SymbolName, err)
	}
	return sym, nil
}

// Privileged wraps a validated kernel function as a metric Provider. The core
// assumes nothing about the kernel's internals beyond the output contract:
// two finite floats, nominally in [0,1].
type Privileged struct {
	fn kernelFunc
}

// Sample invokes the kernel. NaN or infinite output is reported as a provider
// fault rather than passed downstream.
func (p *Privileged) Sample(_ context.Context) (float64, float64, error) {
	kappa, epsilon := p.fn()
	if !finite(kappa) || !finite(epsilon) {
		return 0, 0, fmt.Errorf("kernel returned non-finite values (κ=%v, ε=%v)", kappa, epsilon)
	}
	return kappa, epsilon, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
