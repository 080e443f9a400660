package audit

import "context"

// Repository is the port for persisting settlement log entries.
// The orchestrator depends on this abstraction, not on SQLite directly,
// so the implementation can be swapped for Postgres, in-memory (tests), etc.
type Repository interface {
	// Append persists a new log entry. The table is append-only: each call
	// adds a row, never an upsert.
	Append(ctx context.Context, entry *Entry) error
}
