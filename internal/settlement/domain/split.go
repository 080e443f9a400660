package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Split allocates a share of a payment to one order line item and its
// settlement beneficiary. Splits are created exactly once per line item, at
// confirmation time, and afterwards only accumulate cancellations.
type Split struct {
	ID             string
	PaymentID      string
	OrderRef       string
	OrderItemID    string
	OwnerID        string
	ItemAmount     int64
	CanceledAmount int64
	CreatedAt      time.Time
}

// NewSplit validates and creates a split. The sum of all splits' ItemAmount
// for a payment equals that payment's amount at creation time.
func NewSplit(paymentID, orderRef, orderItemID, ownerID string, itemAmount int64) (*Split, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("split: paymentID must not be empty")
	}
	if orderRef == "" {
		return nil, fmt.Errorf("split: orderRef must not be empty")
	}
	if orderItemID == "" {
		return nil, fmt.Errorf("split: orderItemID must not be empty")
	}
	if ownerID == "" {
		return nil, fmt.Errorf("split: ownerID must not be empty")
	}
	if itemAmount <= 0 {
		return nil, fmt.Errorf("split: itemAmount must be > 0, got %d", itemAmount)
	}
	return &Split{
		ID:          uuid.NewString(),
		PaymentID:   paymentID,
		OrderRef:    orderRef,
		OrderItemID: orderItemID,
		OwnerID:     ownerID,
		ItemAmount:  itemAmount,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Remaining is the amount still cancellable against this line item.
func (s *Split) Remaining() int64 {
	return s.ItemAmount - s.CanceledAmount
}

// AddCancellation accumulates a cancellation against this split.
// The remaining-amount business check belongs to the orchestrator; this only
// enforces the hard invariant canceled <= itemAmount.
func (s *Split) AddCancellation(amount int64) error {
	if amount <= 0 {
		return E(CodeInvalidCancelAmount, "split cancellation amount must be > 0")
	}
	if s.CanceledAmount+amount > s.ItemAmount {
		return fmt.Errorf("split %s: canceling %d past %d/%d: %w",
			s.ID, amount, s.CanceledAmount, s.ItemAmount, ErrLedgerOverflow)
	}
	s.CanceledAmount += amount
	return nil
}
