package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/emergency"
	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/metric"
	"github.com/emergenceguard/emergenceguard/internal/provider"
	"github.com/emergenceguard/emergenceguard/internal/window"
)

// Recorder receives every accepted sample with its verdict. The history
// store implements it; a nil Recorder disables recording.
type Recorder interface {
	RecordSample(ctx context.Context, s metric.Sample, v evaluate.Verdict) error
}

// Config assembles the monitor's collaborators and loop parameters.
type Config struct {
	Provider     metric.Provider
	ProviderKind provider.Kind
	Thresholds   evaluate.Thresholds

	// Interval is the sampling cadence; SampleTimeout bounds each provider
	// call and must not exceed Interval.
	Interval      time.Duration
	SampleTimeout time.Duration

	WindowSize int

	Controller *emergency.Controller
	Recorder   Recorder
}

// Monitor drives the sample-evaluate-escalate loop.
//
// All window and counter mutation happens on the loop goroutine; Report and
// WindowSamples may be called concurrently from API handlers and take the
// mutex only long enough to copy.
type Monitor struct {
	cfg Config

	mu             sync.Mutex
	status         Status
	win            *window.Window
	seq            uint64
	last           metric.Sample
	lastVerdict    evaluate.Verdict
	uptime         uint64
	providerFaults uint64

	now func() time.Time // injectable for deterministic tests
}

// New creates a Monitor. The configuration is assumed validated.
func New(cfg Config) *Monitor {
	return &Monitor{
		cfg:         cfg,
		status:      StatusInitializing,
		win:         window.New(cfg.WindowSize),
		lastVerdict: evaluate.VerdictSafe,
		now:         time.Now,
	}
}

// Run executes the loop until ctx is cancelled. The first cycle runs
// immediately; subsequent cycles follow the configured cadence.
func (m *Monitor) Run(ctx context.Context) {
	m.setStatus(StatusRunning)
	slog.Info("monitor: started",
		"interval", m.cfg.Interval,
		"window_size", m.cfg.WindowSize,
		"provider", m.cfg.ProviderKind,
	)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.setStatus(StatusShutdown)
			slog.Info("monitor: stopped")
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

// cycle performs one sample-evaluate-escalate pass. While the controller is
// triggered the cycle is a no-op; monitoring resumes only after Rearm.
func (m *Monitor) cycle(ctx context.Context) {
	if m.cfg.Controller.State() == emergency.StateTriggered {
		return
	}

	kappa, epsilon, err := m.sampleWithin(ctx)
	if err != nil {
		m.mu.Lock()
		m.providerFaults++
		faults := m.providerFaults
		m.mu.Unlock()
		slog.Warn("monitor: sample faulted, cycle skipped", "err", err, "provider_faults", faults)
		return
	}

	m.mu.Lock()
	m.seq++
	s := metric.Sample{
		Kappa:     metric.Clamp01(kappa),
		Epsilon:   metric.Clamp01(epsilon),
		Timestamp: m.now(),
		Sequence:  m.seq,
	}
	m.win.Push(s)
	v := evaluate.Evaluate(s, m.cfg.Thresholds)
	m.last = s
	m.lastVerdict = v
	m.uptime++
	snapshot := m.win.Snapshot()
	m.mu.Unlock()

	slog.Debug("monitor: sample evaluated",
		"sequence", s.Sequence, "kappa", s.Kappa, "epsilon", s.Epsilon, "verdict", v)

	if m.cfg.Recorder != nil {
		if err := m.cfg.Recorder.RecordSample(ctx, s, v); err != nil {
			slog.Warn("monitor: sample recording failed", "err", err)
		}
	}

	if m.cfg.Controller.Handle(s, v, snapshot) {
		m.setStatus(StatusShutdown)
	}
}

// sampleWithin bounds the provider call with the per-cycle timeout. The call
// runs in its own goroutine so a provider that ignores ctx is abandoned
// rather than stalling the loop.
func (m *Monitor) sampleWithin(ctx context.Context) (kappa, epsilon float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SampleTimeout)
	defer cancel()

	type result struct {
		kappa, epsilon float64
		err            error
	}
	done := make(chan result, 1)
	go func() {
		k, e, err := m.cfg.Provider.Sample(ctx)
		done <- result{k, e, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return 0, 0, fmt.Errorf("monitor: provider: %w", r.err)
		}
		return r.kappa, r.epsilon, nil
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("monitor: provider call exceeded %s: %w", m.cfg.SampleTimeout, ctx.Err())
	}
}

// Rearm returns the emergency controller to ARMED and resumes sampling. It
// reports whether a transition happened.
func (m *Monitor) Rearm() bool {
	if !m.cfg.Controller.Rearm() {
		return false
	}
	m.setStatus(StatusRunning)
	slog.Info("monitor: resumed after rearm")
	return true
}

// Status returns the loop's lifecycle status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) setStatus(st Status) {
	m.mu.Lock()
	m.status = st
	m.mu.Unlock()
}

// WindowCapacity returns the fixed window capacity.
func (m *Monitor) WindowCapacity() int {
	return m.cfg.WindowSize
}

// WindowSamples returns a copy of the current sample window, oldest first.
func (m *Monitor) WindowSamples() []metric.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.win.Snapshot()
}

// Report assembles the point-in-time status document.
func (m *Monitor) Report() Report {
	_, _, persistFaults := m.cfg.Controller.Counters()
	state := m.cfg.Controller.State()

	m.mu.Lock()
	defer m.mu.Unlock()
	return Report{
		MonitorStatus:     string(m.status),
		ControllerState:   string(state),
		CurrentStatus:     string(m.lastVerdict),
		CurrentKappa:      m.last.Kappa,
		CurrentEpsilon:    m.last.Epsilon,
		AvgKappa10:        m.win.MeanKappa(),
		AvgEpsilon10:      m.win.MeanEpsilon(),
		UptimeSamples:     m.uptime,
		ProviderKind:      string(m.cfg.ProviderKind),
		ProviderFaults:    m.providerFaults,
		PersistenceFaults: persistFaults,
		Thresholds: ReportThresholds{
			Kappa:   m.cfg.Thresholds.Kappa,
			Epsilon: m.cfg.Thresholds.Epsilon,
		},
		GeneratedAt: m.now(),
	}
}
