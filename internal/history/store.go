package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/emergenceguard/emergenceguard/internal/emergency"
	"github.com/emergenceguard/emergenceguard/internal/evaluate"
	"github.com/emergenceguard/emergenceguard/internal/metric"
)

const evictInterval = time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	seq      INTEGER NOT NULL,
	ts       INTEGER NOT NULL,
	kappa    REAL    NOT NULL,
	epsilon  REAL    NOT NULL,
	verdict  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_ts ON samples(ts);

CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	triggered_at INTEGER NOT NULL,
	seq          INTEGER NOT NULL,
	kappa        REAL    NOT NULL,
	epsilon      REAL    NOT NULL,
	verdict      TEXT    NOT NULL,
	window_json  TEXT    NOT NULL
);
`

// Store keeps sampled metrics and emergency events in a local SQLite
// database. Samples age out after the retention period; events are kept
// forever, they are the audit trail.
type Store struct {
	db        *sql.DB
	retention time.Duration

	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. The single-writer monitor loop is well within SQLite's comfort
// zone, so no connection tuning is done here.
func Open(path string, retention time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db, retention: retention, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSample appends one evaluated sample to the history.
func (s *Store) RecordSample(ctx context.Context, sm metric.Sample, v evaluate.Verdict) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (seq, ts, kappa, epsilon, verdict) VALUES (?, ?, ?, ?, ?)`,
		sm.Sequence, sm.Timestamp.UnixNano(), sm.Kappa, sm.Epsilon, string(v))
	if err != nil {
		return fmt.Errorf("history: insert sample: %w", err)
	}
	return nil
}

// Persist records an emergency event. It implements emergency.Sink, so the
// store participates in trigger persistence alongside the file dump.
func (s *Store) Persist(ctx context.Context, ev *emergency.Event) error {
	window, err := json.Marshal(ev.WindowSnapshot)
	if err != nil {
		return fmt.Errorf("history: marshal window: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, triggered_at, seq, kappa, epsilon, verdict, window_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TriggeredAt.UnixNano(), ev.Sample.Sequence,
		ev.Sample.Kappa, ev.Sample.Epsilon, string(ev.Verdict), string(window))
	if err != nil {
		return fmt.Errorf("history: insert event: %w", err)
	}
	return nil
}

// Name labels the store in controller fault logs.
func (s *Store) Name() string { return "history" }

// RecentEvents returns up to limit emergency events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]emergency.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, triggered_at, seq, kappa, epsilon, verdict, window_json
		 FROM events ORDER BY triggered_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query events: %w", err)
	}
	defer rows.Close()

	var events []emergency.Event
	for rows.Next() {
		var (
			ev          emergency.Event
			triggeredAt int64
			verdict     string
			windowJSON  string
		)
		if err := rows.Scan(&ev.ID, &triggeredAt, &ev.Sample.Sequence,
			&ev.Sample.Kappa, &ev.Sample.Epsilon, &verdict, &windowJSON); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		ev.TriggeredAt = time.Unix(0, triggeredAt)
		ev.Sample.Timestamp = ev.TriggeredAt
		ev.Verdict = evaluate.Verdict(verdict)
		if err := json.Unmarshal([]byte(windowJSON), &ev.WindowSnapshot); err != nil {
			return nil, fmt.Errorf("history: decode window: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SampleCount reports how many samples are currently retained.
func (s *Store) SampleCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count samples: %w", err)
	}
	return n, nil
}

// Evict deletes samples older than the retention period.
func (s *Store) Evict(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: evict: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Run periodically evicts aged samples until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Evict(ctx)
			if err != nil {
				slog.Error("history: eviction failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("history: evicted aged samples", "count", n)
			}
		}
	}
}
