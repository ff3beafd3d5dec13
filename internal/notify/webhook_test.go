package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/config"
	"github.com/emergenceguard/emergenceguard/internal/emergency"
	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/metric"
)

func testEvent() *emergency.Event {
	return &emergency.Event{
		ID:          "evt-test",
		TriggeredAt: time.Now(),
		Sample:      metric.Sample{Sequence: 3, Kappa: 0.876, Epsilon: 0.234},
		Verdict:     evaluate.VerdictCriticalStress,
	}
}

func TestPersist_SlackPayload(t *testing.T) {
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))
	}))
	defer srv.Close()

	t.Setenv("TEST_NOTIFY_SLACK", srv.URL)
	n := New([]config.WebhookConfig{{Type: "slack", URLEnv: "TEST_NOTIFY_SLACK"}})

	if err := n.Persist(context.Background(), testEvent()); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, _ := body.Load().(string)
	if !strings.Contains(got, "EMERGENCY") {
		t.Errorf("slack payload %q missing EMERGENCY marker", got)
	}
	if !strings.Contains(got, "CRITICAL_STRESS") {
		t.Errorf("slack payload %q missing verdict", got)
	}
}

func TestPersist_HTTPPayload_CarriesEvent(t *testing.T) {
	var payload atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]emergency.Event
		if err := json.NewDecoder(r.Body).Decode(&m); err == nil {
			payload.Store(m)
		}
	}))
	defer srv.Close()

	t.Setenv("TEST_NOTIFY_HTTP", srv.URL)
	n := New([]config.WebhookConfig{{Type: "http", URLEnv: "TEST_NOTIFY_HTTP"}})

	if err := n.Persist(context.Background(), testEvent()); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	m, _ := payload.Load().(map[string]emergency.Event)
	ev, ok := m["event"]
	if !ok {
		t.Fatal("http payload missing event field")
	}
	if ev.ID != "evt-test" {
		t.Errorf("event.ID = %q, want evt-test", ev.ID)
	}
	if ev.Sample.Kappa != 0.876 {
		t.Errorf("event kappa = %v, want 0.876", ev.Sample.Kappa)
	}
}

func TestPersist_ServerError_IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Setenv("TEST_NOTIFY_ERR", srv.URL)
	n := New([]config.WebhookConfig{{Type: "http", URLEnv: "TEST_NOTIFY_ERR"}})

	if err := n.Persist(context.Background(), testEvent()); err == nil {
		t.Fatal("Persist with 502 response: expected error")
	}
}

func TestPersist_OneFailureDoesNotStopOthers(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered.Add(1)
	}))
	defer srv.Close()

	t.Setenv("TEST_NOTIFY_DOWN", "http://127.0.0.1:1")
	t.Setenv("TEST_NOTIFY_UP", srv.URL)
	n := New([]config.WebhookConfig{
		{Type: "http", URLEnv: "TEST_NOTIFY_DOWN"},
		{Type: "teams", URLEnv: "TEST_NOTIFY_UP"},
	})

	err := n.Persist(context.Background(), testEvent())
	if err == nil {
		t.Error("expected joined error from unreachable target")
	}
	if delivered.Load() != 1 {
		t.Errorf("reachable target deliveries = %d, want 1", delivered.Load())
	}
}

func TestPersist_UnsetEnv_SkippedWithoutError(t *testing.T) {
	n := New([]config.WebhookConfig{{Type: "slack", URLEnv: "TEST_NOTIFY_UNSET_ENV"}})
	if err := n.Persist(context.Background(), testEvent()); err != nil {
		t.Fatalf("Persist with unset env: %v", err)
	}
}

func TestPersist_NoTargets_NoOp(t *testing.T) {
	n := New(nil)
	if err := n.Persist(context.Background(), testEvent()); err != nil {
		t.Fatalf("Persist with no targets: %v", err)
	}
}
