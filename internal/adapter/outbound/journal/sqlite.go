// Package journal persists supervisor decisions to a local SQLite database.
// The journal is an operator-facing audit trail; the supervisor itself never
// reads it back to make decisions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/XPrime17/moltworker/internal/supervisor"
)

const schema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
	id          TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL,
	op          TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	process_id  TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_lifecycle_events_recorded_at
	ON lifecycle_events (recorded_at DESC);
`

// Store records lifecycle events in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY churn under concurrent records.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one lifecycle event.
func (s *Store) Record(ctx context.Context, ev supervisor.Event) error {
	when := ev.Time
	if when.IsZero() {
		when = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lifecycle_events (id, recorded_at, op, outcome, reason, process_id, fingerprint)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), when.UTC().Format(time.RFC3339Nano),
		ev.Op, ev.Outcome, ev.Reason, ev.ProcessID, ev.Fingerprint)
	if err != nil {
		return fmt.Errorf("record lifecycle event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first, capped at limit.
func (s *Store) List(ctx context.Context, limit int) ([]supervisor.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT recorded_at, op, outcome, reason, process_id, fingerprint
		 FROM lifecycle_events
		 ORDER BY recorded_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []supervisor.Event
	for rows.Next() {
		var (
			ev       supervisor.Event
			recorded string
		)
		if err := rows.Scan(&recorded, &ev.Op, &ev.Outcome, &ev.Reason, &ev.ProcessID, &ev.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, recorded); parseErr == nil {
			ev.Time = ts
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle events: %w", err)
	}
	return events, nil
}

var _ supervisor.Journal = (*Store)(nil)
