package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	StatusReady     PaymentStatus = "READY"
	StatusPaid      PaymentStatus = "PAID"
	StatusCancelled PaymentStatus = "CANCELLED"
	StatusFailed    PaymentStatus = "FAILED"
)

// Cancellation is one refund against a payment. Records are append-only:
// once written they are never mutated or deleted, which is what makes the
// derived canceled total safe under concurrent cancellations.
type Cancellation struct {
	ID         string
	GatewayKey string
	Amount     int64
	Reason     string
	CanceledAt time.Time
}

// NewCancellation builds an immutable cancellation record.
func NewCancellation(gatewayKey string, amount int64, reason string, canceledAt time.Time) Cancellation {
	return Cancellation{
		ID:         uuid.NewString(),
		GatewayKey: gatewayKey,
		Amount:     amount,
		Reason:     reason,
		CanceledAt: canceledAt,
	}
}

// Payment is the payment ledger record, one per order.
//
// The canceled total is never stored as a counter; it is always derived from
// the cancellation records, so two concurrent cancellations appending records
// can never lose each other's update.
type Payment struct {
	ID         string
	OrderRef   string
	Amount     int64
	Status     PaymentStatus
	GatewayKey string
	ApprovedAt *time.Time
	Cancels    []Cancellation
	CreatedAt  time.Time
}

// NewPayment creates a READY payment for an order. Owned by the
// order-creation workflow; the orchestrator only ever loads existing ones.
func NewPayment(orderRef string, amount int64) (*Payment, error) {
	if orderRef == "" {
		return nil, fmt.Errorf("payment: orderRef must not be empty")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("payment: amount must be > 0, got %d", amount)
	}
	return &Payment{
		ID:        uuid.NewString(),
		OrderRef:  orderRef,
		Amount:    amount,
		Status:    StatusReady,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// CanceledAmount is the sum over all cancellation records.
func (p *Payment) CanceledAmount() int64 {
	var total int64
	for _, c := range p.Cancels {
		total += c.Amount
	}
	return total
}

// Remaining is the balance still cancellable.
func (p *Payment) Remaining() int64 {
	return p.Amount - p.CanceledAmount()
}

func (p *Payment) IsPaid() bool      { return p.Status == StatusPaid }
func (p *Payment) IsCancelled() bool { return p.Status == StatusCancelled }

// MarkPaid transitions READY -> PAID, recording the gateway reference and
// approval time. Only legal from READY; the orchestrator short-circuits
// duplicate confirms before ever calling this.
func (p *Payment) MarkPaid(gatewayKey string, approvedAt time.Time) error {
	if p.Status != StatusReady {
		return E(CodePaymentNotReady, fmt.Sprintf("payment %s is %s, not READY", p.ID, p.Status))
	}
	if gatewayKey == "" {
		return fmt.Errorf("payment: gatewayKey must not be empty")
	}
	p.GatewayKey = gatewayKey
	at := approvedAt
	p.ApprovedAt = &at
	p.Status = StatusPaid
	return nil
}

// Abandon transitions READY -> FAILED when a confirmation is given up.
func (p *Payment) Abandon() error {
	if p.Status != StatusReady {
		return E(CodePaymentNotReady, fmt.Sprintf("payment %s is %s, not READY", p.ID, p.Status))
	}
	p.Status = StatusFailed
	return nil
}

// AppendCancellation appends a cancellation record and flips the payment to
// CANCELLED once the derived total reaches the authorized amount. A record
// that would push the total past the amount is an invariant violation and is
// rejected without mutating the ledger.
func (p *Payment) AppendCancellation(rec Cancellation) error {
	if rec.Amount <= 0 {
		return E(CodeInvalidCancelAmount, "cancellation amount must be > 0")
	}
	if p.CanceledAmount()+rec.Amount > p.Amount {
		return fmt.Errorf("payment %s: appending %d to %d exceeds %d: %w",
			p.ID, rec.Amount, p.CanceledAmount(), p.Amount, ErrLedgerOverflow)
	}
	p.Cancels = append(p.Cancels, rec)
	if p.CanceledAmount() >= p.Amount {
		p.Status = StatusCancelled
	}
	return nil
}
