package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/config"
	"github.com/emergenceguard/emergenceguard/internal/metric"
)

// Kind identifies which provider implementation resolution selected.
type Kind string

const (
	KindFallback   Kind = "FALLBACK"
	KindPrivileged Kind = "PRIVILEGED"
)

// Resolution is the outcome of provider resolution. Provider is always
// non-nil; Reason explains why the fallback was selected and is empty when
// the privileged kernel loaded.
type Resolution struct {
	Provider metric.Provider
	Kind     Kind
	Reason   string
}

// Resolver discovers and validates the privileged kernel artifact.
//
// Resolution never fails the process: any failure (missing artifact, load
// error, wrong symbol signature, smoke-test timeout or panic) selects the
// fallback provider and records the reason. Absence or malfunction of the
// kernel must never prevent monitoring from running.
type Resolver struct {
	dir          string
	smokeTimeout time.Duration
	fallback     metric.Provider

	lookup symbolLookup // injectable for tests
}

// NewResolver creates a Resolver searching cfg.Dir, falling back to fallback.
func NewResolver(cfg config.ProviderConfig, fallback metric.Provider) *Resolver {
	return &Resolver{
		dir:          cfg.Dir,
		smokeTimeout: cfg.SmokeTimeout,
		fallback:     fallback,
		lookup:       openKernelSymbol,
	}
}

// Resolve locates, validates, and smoke-tests the kernel artifact.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	path := filepath.Join(r.dir, ArtifactName)

	if _, err := os.Stat(path); err != nil {
		return r.fallBack(fmt.Sprintf("artifact %s not found", path))
	}

	sym, err := r.lookup(path)
	if err != nil {
		return r.fallBack(fmt.Sprintf("load %s: %v", path, err))
	}

	fn, ok := sym.(kernelFunc)
	if !ok {
		return r.fallBack(fmt.Sprintf("symbol %s has wrong signature %T, want func() (float64, float64)", SymbolName, sym))
	}

	if err := r.smokeTest(ctx, fn); err != nil {
		return r.fallBack(fmt.Sprintf("smoke test failed: %v", err))
	}

	slog.Info("provider: privileged kernel loaded", "path", path)
	return Resolution{Provider: &Privileged{fn: fn}, Kind: KindPrivileged}
}

// smokeTest calls fn once under the bounded timeout, tolerating panics and
// rejecting non-finite output. A kernel that cannot answer one call promptly
// cannot be trusted to keep up with the monitor cadence.
func (r *Resolver) smokeTest(ctx context.Context, fn kernelFunc) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("kernel panicked: %v", rec)
			}
		}()
		kappa, epsilon := fn()
		if !finite(kappa) || !finite(epsilon) {
			done <- fmt.Errorf("non-finite output (κ=%v, ε=%v)", kappa, epsilon)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.smokeTimeout):
		return fmt.Errorf("no response within %s", r.smokeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Resolver) fallBack(reason string) Resolution {
	slog.Warn("provider: privileged kernel unavailable, using fallback", "reason", reason)
	return Resolution{Provider: r.fallback, Kind: KindFallback, Reason: reason}
}
