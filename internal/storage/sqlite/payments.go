package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

// PaymentRepository is the SQLite implementation of ports.PaymentRepository.
type PaymentRepository struct {
	db *sql.DB
}

var _ ports.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(d *DB) *PaymentRepository {
	return &PaymentRepository{db: d.db}
}

func (r *PaymentRepository) CreateReady(ctx context.Context, p *domain.Payment) error {
	const q = `
		INSERT INTO payments (payment_id, order_ref, amount, status, gateway_key, approved_at, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)`

	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.OrderRef, p.Amount, string(p.Status), p.GatewayKey, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: create payment for order %q: %w", p.OrderRef, err)
	}
	return nil
}

func (r *PaymentRepository) GetByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error) {
	return r.getOne(ctx, "order_ref = ?", orderRef)
}

func (r *PaymentRepository) GetByGatewayKey(ctx context.Context, gatewayKey string) (*domain.Payment, error) {
	return r.getOne(ctx, "gateway_key = ?", gatewayKey)
}

func (r *PaymentRepository) getOne(ctx context.Context, where string, arg string) (*domain.Payment, error) {
	q := `
		SELECT payment_id, order_ref, amount, status, gateway_key, approved_at, created_at
		FROM   payments
		WHERE  ` + where

	row := r.db.QueryRowContext(ctx, q, arg)

	var p domain.Payment
	var approvedAt sql.NullString
	var createdAt string
	err := row.Scan(&p.ID, &p.OrderRef, &p.Amount, (*string)(&p.Status), &p.GatewayKey, &approvedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.CodePaymentNotFound, "payment not found for "+arg)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load payment for %q: %w", arg, err)
	}

	if p.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		at, err := parseRFC3339(approvedAt.String)
		if err != nil {
			return nil, err
		}
		p.ApprovedAt = &at
	}

	if p.Cancels, err = r.loadCancels(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// loadCancels reads the append-only cancellation records in order. The
// payment's canceled total is always the sum over these rows — there is no
// stored counter to drift from them.
func (r *PaymentRepository) loadCancels(ctx context.Context, paymentID string) ([]domain.Cancellation, error) {
	const q = `
		SELECT cancel_id, gateway_key, amount, reason, canceled_at
		FROM   payment_cancels
		WHERE  payment_id = ?
		ORDER  BY canceled_at, cancel_id`

	rows, err := r.db.QueryContext(ctx, q, paymentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load cancels for %q: %w", paymentID, err)
	}
	defer rows.Close()

	var cancels []domain.Cancellation
	for rows.Next() {
		var c domain.Cancellation
		var canceledAt string
		if err := rows.Scan(&c.ID, &c.GatewayKey, &c.Amount, &c.Reason, &canceledAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan cancel for %q: %w", paymentID, err)
		}
		if c.CanceledAt, err = parseRFC3339(canceledAt); err != nil {
			return nil, err
		}
		cancels = append(cancels, c)
	}
	return cancels, rows.Err()
}

// Save writes the payment row and appends any cancellation records not yet
// stored. INSERT OR IGNORE on the record id makes replays harmless; existing
// cancel rows are never touched.
//
// The overflow invariant (canceled total <= amount) is re-checked against the
// stored rows inside the same transaction. The caller's in-memory check runs
// on a copy that may be stale; a concurrent cancel can have appended records
// between load and Save, so the stored sum is the authoritative one and the
// final status is derived from it.
func (r *PaymentRepository) Save(ctx context.Context, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save payment %q: %w", p.ID, err)
	}
	defer tx.Rollback()

	const ins = `
		INSERT OR IGNORE INTO payment_cancels
			(cancel_id, payment_id, gateway_key, amount, reason, canceled_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, c := range p.Cancels {
		if _, err := tx.ExecContext(ctx, ins, c.ID, p.ID, c.GatewayKey, c.Amount, c.Reason, formatTime(c.CanceledAt)); err != nil {
			return fmt.Errorf("sqlite: append cancel %q: %w", c.ID, err)
		}
	}

	const sum = `
		SELECT (SELECT amount FROM payments WHERE payment_id = ?),
		       COALESCE((SELECT SUM(amount) FROM payment_cancels WHERE payment_id = ?), 0)`
	var amount, canceled int64
	if err := tx.QueryRowContext(ctx, sum, p.ID, p.ID).Scan(&amount, &canceled); err != nil {
		return fmt.Errorf("sqlite: re-read canceled total for %q: %w", p.ID, err)
	}
	if canceled > amount {
		return fmt.Errorf("sqlite: payment %q: canceled total %d exceeds amount %d: %w",
			p.ID, canceled, amount, domain.ErrLedgerOverflow)
	}
	status := p.Status
	if canceled == amount {
		status = domain.StatusCancelled
	}

	var approvedAt any
	if p.ApprovedAt != nil {
		approvedAt = formatTime(*p.ApprovedAt)
	}

	const upd = `
		UPDATE payments
		SET    status = ?, gateway_key = ?, approved_at = ?
		WHERE  payment_id = ?`
	if _, err := tx.ExecContext(ctx, upd, string(status), p.GatewayKey, approvedAt, p.ID); err != nil {
		return fmt.Errorf("sqlite: save payment %q: %w", p.ID, err)
	}

	return tx.Commit()
}
