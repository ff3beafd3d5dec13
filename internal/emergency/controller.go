package emergency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/metric"
)

// State is the controller's position in its two-state machine.
type State string

const (
	// StateArmed accepts verdicts; the first critical one triggers.
	StateArmed State = "ARMED"

	// StateTriggered is terminal for the monitoring session. Only an explicit
	// external Rearm returns the controller to ARMED.
	StateTriggered State = "TRIGGERED"
)

// Controller consumes verdicts and performs the one-shot escalation to
// shutdown. The ARMED→TRIGGERED transition happens exactly once per session
// no matter how many critical verdicts arrive, which prevents duplicate
// shutdown events under repeated delivery.
//
// Controller is safe for concurrent use; verdict delivery is serialized by
// the monitor loop, while state reads may come from any goroutine.
type Controller struct {
	writeTimeout time.Duration
	sinks        []Sink

	mu            sync.Mutex
	state         State
	event         *Event
	safeCount     uint64
	warningCount  uint64
	persistFaults uint64

	now func() time.Time // injectable for deterministic tests
}

// NewController returns an ARMED controller that hands emergency events to
// sinks, bounding each persist call by writeTimeout.
func NewController(writeTimeout time.Duration, sinks ...Sink) *Controller {
	return &Controller{
		writeTimeout: writeTimeout,
		sinks:        sinks,
		state:        StateArmed,
		now:          time.Now,
	}
}

// Handle consumes one verdict for sample s. window is the sample window
// snapshot taken at evaluation time. It returns true when this call performed
// the ARMED→TRIGGERED transition, the signal for the loop to stop.
//
// Sink failures are logged and counted but never block or cancel the
// shutdown signal.
func (c *Controller) Handle(s metric.Sample, v evaluate.Verdict, window []metric.Sample) bool {
	c.mu.Lock()

	if c.state == StateTriggered {
		c.mu.Unlock()
		return false
	}

	if !v.Critical() {
		switch v {
		case evaluate.VerdictWarning:
			c.warningCount++
		default:
			c.safeCount++
		}
		c.mu.Unlock()
		return false
	}

	ev := &Event{
		ID:             uuid.NewString(),
		TriggeredAt:    c.now(),
		Sample:         s,
		Verdict:        v,
		WindowSnapshot: window,
	}
	c.state = StateTriggered
	c.event = ev
	c.mu.Unlock()

	slog.Error("emergency: shutdown triggered",
		"event_id", ev.ID,
		"verdict", v,
		"kappa", s.Kappa,
		"epsilon", s.Epsilon,
		"sequence", s.Sequence,
	)

	c.persist(ev)
	return true
}

// persist hands the event to every sink under the bounded write timeout.
func (c *Controller) persist(ev *Event) {
	for _, sink := range c.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		err := persistWithin(ctx, sink, ev)
		cancel()

		if err != nil {
			c.mu.Lock()
			c.persistFaults++
			c.mu.Unlock()
			slog.Error("emergency: event persistence failed",
				"event_id", ev.ID, "sink", sinkName(sink), "err", err)
		}
	}
}

// persistWithin guards against sinks that ignore ctx: the write runs in its
// own goroutine and is abandoned once the deadline passes.
func persistWithin(ctx context.Context, sink Sink, ev *Event) error {
	done := make(chan error, 1)
	go func() {
		done <- sink.Persist(ctx, ev)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TriggeredEvent returns a copy of the escalation event, or nil while ARMED.
func (c *Controller) TriggeredEvent() *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.event == nil {
		return nil
	}
	cp := *c.event
	cp.WindowSnapshot = append([]metric.Sample(nil), c.event.WindowSnapshot...)
	return &cp
}

// Counters reports how many SAFE and WARNING verdicts were observed while
// ARMED, and how many persistence faults occurred.
func (c *Controller) Counters() (safe, warning, persistFaults uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.safeCount, c.warningCount, c.persistFaults
}

// Rearm returns a TRIGGERED controller to ARMED, clearing the stored event.
// It reports whether a transition happened; re-arming an ARMED controller is
// a no-op. Re-arming is deliberately external-only: the controller never
// recovers on its own, which prevents flapping.
func (c *Controller) Rearm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateTriggered {
		return false
	}
	c.state = StateArmed
	c.event = nil
	slog.Warn("emergency: controller re-armed by external request")
	return true
}

// sinkName gives a stable label for log lines.
func sinkName(s Sink) string {
	type named interface{ Name() string }
	if n, ok := s.(named); ok {
		return n.Name()
	}
	switch s.(type) {
	case *FileSink:
		return "file"
	default:
		return "sink"
	}
}
