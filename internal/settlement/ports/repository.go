package ports

import (
	"context"

	"github.com/commercelab/settlement/internal/settlement/domain"
)

// PaymentRepository persists the payment ledger. Save writes the payment row
// and any cancellation records not yet stored; cancellation rows are
// append-only and inserts are idempotent on the record id.
type PaymentRepository interface {
	CreateReady(ctx context.Context, p *domain.Payment) error
	GetByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error)
	GetByGatewayKey(ctx context.Context, gatewayKey string) (*domain.Payment, error)
	Save(ctx context.Context, p *domain.Payment) error
}

// SplitRepository persists the split ledger. OrderItemID is unique across all
// splits: one split is ever created per line item.
type SplitRepository interface {
	GetByOrderItemID(ctx context.Context, orderItemID string) (*domain.Split, error)
	ExistsByOrderItemID(ctx context.Context, orderItemID string) (bool, error)
	ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.Split, error)
	SaveAll(ctx context.Context, splits []*domain.Split) error
	Save(ctx context.Context, s *domain.Split) error
}

// SplitLocker serializes cancellations on a single order item. Acquire blocks
// for a bounded wait and fails with a LOCK_CONFLICT settlement error instead
// of waiting indefinitely. The returned release must be called exactly once.
type SplitLocker interface {
	Acquire(ctx context.Context, orderItemID string) (release func(ctx context.Context) error, err error)
}
