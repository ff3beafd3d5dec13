package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/metric"
)

// Event is the record created exactly once per escalation. It is immutable
// after construction; sinks receive copies and must not retain references to
// the window slice beyond the persist call.
type Event struct {
	ID             string           `json:"id"`
	TriggeredAt    time.Time        `json:"triggered_at"`
	Sample         metric.Sample    `json:"triggering_sample"`
	Verdict        evaluate.Verdict `json:"verdict"`
	WindowSnapshot []metric.Sample  `json:"window_snapshot"`
}

// Sink persists or forwards an emergency event. Implementations must respect
// ctx: the controller bounds every persist call with a write timeout and a
// sink that overruns it is abandoned.
type Sink interface {
	Persist(ctx context.Context, ev *Event) error
}

// FileSink writes each event as a pretty-printed JSON file named
// emergency_<unix-timestamp>.json in a fixed directory. The timestamped name
// avoids collisions across triggers.
type FileSink struct {
	dir string
}

// NewFileSink returns a FileSink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Persist writes the event dump. The file lands atomically enough for a
// post-mortem artifact; there is no reader racing the trigger path.
func (s *FileSink) Persist(_ context.Context, ev *Event) error {
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("emergency: marshal event: %w", err)
	}

	name := fmt.Sprintf("emergency_%d.json", ev.TriggeredAt.Unix())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("emergency: write %s: %w", path, err)
	}
	return nil
}
