package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/emergency"
	"github.com/emergenceguard/emergenceguard/internal/metric"
	"github.com/emergenceguard/emergenceguard/internal/monitor"
)

const defaultEventLimit = 20

// Guard is the monitor surface the handlers read from and the one operation
// they may invoke.
type Guard interface {
	Report() monitor.Report
	WindowSamples() []metric.Sample
	WindowCapacity() int
	Rearm() bool
}

// EventSource lists persisted emergency events. The history store implements
// it; a nil EventSource serves an empty list.
type EventSource interface {
	RecentEvents(ctx context.Context, limit int) ([]emergency.Event, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	guard  Guard
	events EventSource
	mux    *http.ServeMux
}

// New creates a Handler wired to the guard and registers all routes.
func New(guard Guard, events EventSource) http.Handler {
	h := &Handler{guard: guard, events: events, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/window", h.window)
	h.mux.HandleFunc("/api/v1/events", h.listEvents)
	h.mux.HandleFunc("/api/v1/rearm", h.rearm)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health, a cheap liveness probe.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rep := h.guard.Report()
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		MonitorStatus:   rep.MonitorStatus,
		ControllerState: rep.ControllerState,
	})
}

// status returns GET /api/v1/status, the full point-in-time report.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.guard.Report())
}

// window returns GET /api/v1/window, the rolling sample window oldest first.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	samples := h.guard.WindowSamples()
	out := make([]sampleEntry, 0, len(samples))
	for _, s := range samples {
		out = append(out, sampleEntry{
			Sequence:  s.Sequence,
			Kappa:     s.Kappa,
			Epsilon:   s.Epsilon,
			Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	jsonResp(w, http.StatusOK, WindowResponse{
		Count:    len(out),
		Capacity: h.guard.WindowCapacity(),
		Samples:  out,
	})
}

// listEvents returns GET /api/v1/events, persisted emergency events newest
// first. The limit query parameter caps the result.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.events == nil {
		jsonResp(w, http.StatusOK, []emergency.Event{})
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.events.RecentEvents(r.Context(), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "event query failed")
		return
	}
	if events == nil {
		events = []emergency.Event{}
	}
	jsonResp(w, http.StatusOK, events)
}

// rearm handles POST /api/v1/rearm, the external path back to ARMED.
// Re-arming an already armed guard is a conflict, not a silent success, so
// operators notice double submissions.
func (h *Handler) rearm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !h.guard.Rearm() {
		jsonErr(w, http.StatusConflict, "guard is not triggered")
		return
	}
	jsonResp(w, http.StatusOK, RearmResponse{
		Rearmed: true,
		State:   h.guard.Report().ControllerState,
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
