package ports

import "context"

// OrderSummary is the authoritative order view the engine validates against.
type OrderSummary struct {
	OrderRef      string
	TotalAmount   int64
	OrderNumber   string
	RecipientName string
}

// OrderItemSnapshot is one line item as seen at confirmation time.
type OrderItemSnapshot struct {
	OrderItemID string
	OwnerID     string
	LineAmount  int64
}

// OrderSnapshot is the read-only port into the order aggregate.
// Both calls may fail with an ORDER_NOT_FOUND settlement error.
type OrderSnapshot interface {
	GetOrderSummary(ctx context.Context, orderRef string) (*OrderSummary, error)
	GetOrderItems(ctx context.Context, orderRef string) ([]OrderItemSnapshot, error)
}

// OrderState is the write-only port pushing payment outcomes back into the
// order aggregate. Each call happens at most once per transition.
type OrderState interface {
	MarkPaid(ctx context.Context, orderRef string) error

	// MarkCancelled reports a cancellation. The order only transitions to
	// CANCELLED when resultingStatus says the payment is fully cancelled;
	// partial cancellations are informational.
	MarkCancelled(ctx context.Context, orderRef string, amountThisTime, amountTotal int64, resultingStatus string, affectedItemIDs []string) error
}
