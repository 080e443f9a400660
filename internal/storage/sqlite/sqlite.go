// Package sqlite persists the payment ledger, split ledger, and settlement
// audit log in SQLite.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the HTTP handlers read payment views while cancellations write.
package sqlite

import (
	"database/sql"
	"fmt"

	// Register the pure-Go SQLite driver.
	// modernc.org/sqlite avoids CGO, keeping builds trivial in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
//
// payments deliberately has NO canceled_amount column: the canceled total is
// always derived as SUM over payment_cancels, which is append-only. Two
// concurrent cancellations therefore append rows instead of racing on a
// shared counter.
const schema = `
CREATE TABLE IF NOT EXISTS payments (
    payment_id   TEXT PRIMARY KEY,

    -- One payment per order.
    order_ref    TEXT NOT NULL UNIQUE,

    -- Authorized total, fixed at creation.
    amount       INTEGER NOT NULL,

    -- READY | PAID | CANCELLED | FAILED
    status       TEXT NOT NULL,

    -- Provider reference; empty until confirmed. Unique when present.
    gateway_key  TEXT NOT NULL DEFAULT '',

    -- RFC3339 TEXT, NULL until confirmed (SQLite idiom).
    approved_at  TEXT,

    created_at   TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_gateway_key
    ON payments(gateway_key) WHERE gateway_key != '';

-- Append-only: rows are never updated or deleted. The PRIMARY KEY on the
-- record id makes re-persisting an already-saved payment idempotent.
CREATE TABLE IF NOT EXISTS payment_cancels (
    cancel_id    TEXT PRIMARY KEY,
    payment_id   TEXT NOT NULL REFERENCES payments(payment_id),
    gateway_key  TEXT NOT NULL,
    amount       INTEGER NOT NULL,
    reason       TEXT NOT NULL,
    canceled_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_cancels_payment_id
    ON payment_cancels(payment_id, canceled_at);

CREATE TABLE IF NOT EXISTS splits (
    split_id        TEXT PRIMARY KEY,
    payment_id      TEXT NOT NULL REFERENCES payments(payment_id),
    order_ref       TEXT NOT NULL,

    -- One split ever per line item.
    order_item_id   TEXT NOT NULL UNIQUE,

    owner_id        TEXT NOT NULL,
    item_amount     INTEGER NOT NULL,
    canceled_amount INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_splits_payment_id ON splits(payment_id);
CREATE INDEX IF NOT EXISTS idx_splits_owner_id ON splits(owner_id);

-- Append-only settlement log; trace_id joins rows to distributed traces.
CREATE TABLE IF NOT EXISTS settlement_logs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    payment_id   TEXT NOT NULL,
    order_ref    TEXT NOT NULL,
    event        TEXT NOT NULL,
    amount       INTEGER NOT NULL DEFAULT 0,
    gateway_key  TEXT NOT NULL DEFAULT '',
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',
    recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlement_logs_payment_id
    ON settlement_logs(payment_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_settlement_logs_trace_id
    ON settlement_logs(trace_id);
`

// DB wraps the SQLite handle shared by the repositories.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for better concurrent read/write
// performance; busy_timeout waits for locks instead of failing immediately.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3", for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (d *DB) Close() error {
	return d.db.Close()
}
