package monitor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/emergency"
	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/metric"
	"github.com/emergenceguard/emergenceguard/internal/provider"
)

type step struct {
	kappa, epsilon float64
	err            error
	delay          time.Duration
}

// scriptedProvider replays a fixed sequence of responses, repeating the last
// step once the script is exhausted.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []step
	i     int
}

func (p *scriptedProvider) Sample(ctx context.Context) (float64, float64, error) {
	p.mu.Lock()
	st := p.steps[p.i]
	if p.i < len(p.steps)-1 {
		p.i++
	}
	p.mu.Unlock()

	if st.delay > 0 {
		select {
		case <-time.After(st.delay):
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}
	return st.kappa, st.epsilon, st.err
}

func newTestMonitor(p metric.Provider) *Monitor {
	return New(Config{
		Provider:      p,
		ProviderKind:  provider.KindFallback,
		Thresholds:    evaluate.Default(),
		Interval:      10 * time.Millisecond,
		SampleTimeout: 5 * time.Millisecond,
		WindowSize:    10,
		Controller:    emergency.NewController(time.Second),
	})
}

func TestCycle_EscalationScenario(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{kappa: 0.234, epsilon: 0.156},
		{kappa: 0.445, epsilon: 0.289},
		{kappa: 0.876, epsilon: 0.234},
	}}
	m := newTestMonitor(p)
	ctx := context.Background()

	m.cycle(ctx)
	m.cycle(ctx)

	rep := m.Report()
	if rep.CurrentStatus != string(evaluate.VerdictSafe) {
		t.Errorf("current_status after 2 safe samples = %s, want SAFE", rep.CurrentStatus)
	}
	if rep.UptimeSamples != 2 {
		t.Errorf("uptime_samples = %d, want 2", rep.UptimeSamples)
	}
	if got := rep.AvgKappa10; math.Abs(got-0.3395) > 1e-9 {
		t.Errorf("avg_kappa_10 = %v, want 0.3395", got)
	}
	if m.cfg.Controller.State() != emergency.StateArmed {
		t.Fatal("controller triggered on safe samples")
	}

	m.cycle(ctx)

	if m.cfg.Controller.State() != emergency.StateTriggered {
		t.Fatal("third sample (κ=0.876) did not trigger shutdown")
	}
	if m.Status() != StatusShutdown {
		t.Errorf("monitor status = %s, want SHUTDOWN", m.Status())
	}

	ev := m.cfg.Controller.TriggeredEvent()
	if ev == nil {
		t.Fatal("no triggered event")
	}
	if ev.Verdict != evaluate.VerdictCriticalStress {
		t.Errorf("verdict = %s, want CRITICAL_STRESS", ev.Verdict)
	}
	if ev.Sample.Sequence != 3 {
		t.Errorf("triggering sequence = %d, want 3", ev.Sample.Sequence)
	}
	if len(ev.WindowSnapshot) != 3 {
		t.Errorf("window snapshot len = %d, want 3", len(ev.WindowSnapshot))
	}
}

func TestCycle_ProviderError_SkipsCycle(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{kappa: 0.2, epsilon: 0.2},
		{err: errors.New("sensor offline")},
		{kappa: 0.3, epsilon: 0.3},
	}}
	m := newTestMonitor(p)
	ctx := context.Background()

	m.cycle(ctx)
	m.cycle(ctx) // faults
	m.cycle(ctx)

	rep := m.Report()
	if rep.UptimeSamples != 2 {
		t.Errorf("uptime_samples = %d, want 2 (faulted cycle must not count)", rep.UptimeSamples)
	}
	if rep.ProviderFaults != 1 {
		t.Errorf("provider_faults = %d, want 1", rep.ProviderFaults)
	}

	// Sequence numbers are assigned only to accepted samples.
	win := m.WindowSamples()
	if len(win) != 2 {
		t.Fatalf("window len = %d, want 2", len(win))
	}
	if win[0].Sequence != 1 || win[1].Sequence != 2 {
		t.Errorf("sequences = (%d, %d), want (1, 2)", win[0].Sequence, win[1].Sequence)
	}
}

func TestCycle_ProviderTimeout_IsFault(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{kappa: 0.2, epsilon: 0.2, delay: time.Second},
	}}
	m := newTestMonitor(p)

	start := time.Now()
	m.cycle(context.Background())
	elapsed := time.Since(start)

	rep := m.Report()
	if rep.ProviderFaults != 1 {
		t.Errorf("provider_faults = %d, want 1", rep.ProviderFaults)
	}
	if rep.UptimeSamples != 0 {
		t.Errorf("uptime_samples = %d, want 0", rep.UptimeSamples)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("cycle blocked %v, sample timeout not enforced", elapsed)
	}
}

func TestCycle_ClampsOutOfRangeValues(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{kappa: 1.5, epsilon: -0.2},
	}}
	m := newTestMonitor(p)

	m.cycle(context.Background())

	win := m.WindowSamples()
	if len(win) != 1 {
		t.Fatalf("window len = %d, want 1", len(win))
	}
	if win[0].Kappa != 1 || win[0].Epsilon != 0 {
		t.Errorf("clamped sample = (%v, %v), want (1, 0)", win[0].Kappa, win[0].Epsilon)
	}
}

func TestCycle_NoSamplingWhileTriggered(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{kappa: 0.9, epsilon: 0.2},
		{kappa: 0.1, epsilon: 0.1},
	}}
	m := newTestMonitor(p)
	ctx := context.Background()

	m.cycle(ctx)
	if m.cfg.Controller.State() != emergency.StateTriggered {
		t.Fatal("critical sample did not trigger")
	}

	for i := 0; i < 5; i++ {
		m.cycle(ctx)
	}
	if got := m.Report().UptimeSamples; got != 1 {
		t.Errorf("uptime_samples = %d, want 1 (no sampling while triggered)", got)
	}
}

func TestRearm_ResumesSampling(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{kappa: 0.9, epsilon: 0.2},
		{kappa: 0.1, epsilon: 0.1},
	}}
	m := newTestMonitor(p)
	ctx := context.Background()

	m.cycle(ctx)
	if !m.Rearm() {
		t.Fatal("Rearm after trigger: want true")
	}
	if m.Status() != StatusRunning {
		t.Errorf("status after rearm = %s, want RUNNING", m.Status())
	}

	m.cycle(ctx)
	rep := m.Report()
	if rep.UptimeSamples != 2 {
		t.Errorf("uptime_samples = %d, want 2", rep.UptimeSamples)
	}
	if rep.ControllerState != string(emergency.StateArmed) {
		t.Errorf("controller_state = %s, want ARMED", rep.ControllerState)
	}

	// Rearming an armed monitor is a no-op.
	if m.Rearm() {
		t.Error("Rearm while armed: want false")
	}
}

func TestReport_BeforeFirstSample(t *testing.T) {
	m := newTestMonitor(&scriptedProvider{steps: []step{{}}})

	rep := m.Report()
	if rep.MonitorStatus != string(StatusInitializing) {
		t.Errorf("monitor_status = %s, want INITIALIZING", rep.MonitorStatus)
	}
	if rep.UptimeSamples != 0 || rep.AvgKappa10 != 0 || rep.AvgEpsilon10 != 0 {
		t.Errorf("empty report carries non-zero sample data: %+v", rep)
	}
	if rep.Thresholds.Kappa != 0.80 || rep.Thresholds.Epsilon != 0.70 {
		t.Errorf("thresholds = %+v, want (0.80, 0.70)", rep.Thresholds)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	p := &scriptedProvider{steps: []step{{kappa: 0.1, epsilon: 0.1}}}
	m := newTestMonitor(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if m.Status() != StatusShutdown {
		t.Errorf("status after stop = %s, want SHUTDOWN", m.Status())
	}
	if m.Report().UptimeSamples == 0 {
		t.Error("Run took no samples before cancellation")
	}
}
