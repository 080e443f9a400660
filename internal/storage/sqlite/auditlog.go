package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commercelab/settlement/internal/settlement/audit"
)

// AuditRepository is the SQLite implementation of audit.Repository.
type AuditRepository struct {
	db *sql.DB
}

var _ audit.Repository = (*AuditRepository)(nil)

func NewAuditRepository(d *DB) *AuditRepository {
	return &AuditRepository{db: d.db}
}

// Append inserts a new settlement log entry. Safe to call concurrently.
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	const q = `
		INSERT INTO settlement_logs
			(payment_id, order_ref, event, amount, gateway_key, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.PaymentID,
		entry.OrderRef,
		string(entry.Event),
		entry.Amount,
		entry.GatewayKey,
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append settlement log for %q: %w", entry.PaymentID, err)
	}
	return nil
}

// ListByPaymentID returns all log entries for a payment in order, oldest
// first. Used by reconciliation tooling and tests.
func (r *AuditRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*audit.Entry, error) {
	const q = `
		SELECT payment_id, order_ref, event, amount, gateway_key, trace_id, span_id, recorded_at
		FROM   settlement_logs
		WHERE  payment_id = ?
		ORDER  BY recorded_at, id`

	rows, err := r.db.QueryContext(ctx, q, paymentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list settlement logs for %q: %w", paymentID, err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var recordedAt string
		if err := rows.Scan(&e.PaymentID, &e.OrderRef, (*string)(&e.Event), &e.Amount, &e.GatewayKey, &e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan settlement log for %q: %w", paymentID, err)
		}
		if e.RecordedAt, err = parseRFC3339(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
