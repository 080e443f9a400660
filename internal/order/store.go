package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

// Store is an in-memory order store. It owns the order-creation workflow
// (which creates the READY payment) and implements the snapshot and state
// ports the settlement engine depends on.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]*Order
	payments ports.PaymentRepository
}

var (
	_ ports.OrderSnapshot = (*Store)(nil)
	_ ports.OrderState    = (*Store)(nil)
)

func NewStore(payments ports.PaymentRepository) *Store {
	return &Store{
		orders:   make(map[string]*Order),
		payments: payments,
	}
}

// CreateOrder persists a PENDING order and creates its READY payment, the
// precondition for every settlement flow.
func (s *Store) CreateOrder(ctx context.Context, customerID, recipientName string, items []Item) (*Order, error) {
	if customerID == "" || len(items) == 0 {
		return nil, fmt.Errorf("order: customerID and items are required")
	}
	for i := range items {
		if items[i].OwnerID == "" || items[i].Quantity <= 0 || items[i].UnitPrice <= 0 {
			return nil, fmt.Errorf("order: every item needs an owner, a positive quantity, and a positive price")
		}
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}

	id := uuid.NewString()
	o := &Order{
		ID:            id,
		OrderNumber:   "ORD-" + strings.ToUpper(id[:8]),
		CustomerID:    customerID,
		RecipientName: recipientName,
		Items:         items,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	p, err := domain.NewPayment(o.ID, o.Total())
	if err != nil {
		return nil, err
	}
	if err := s.payments.CreateReady(ctx, p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()

	return o, nil
}

func (s *Store) Get(orderRef string) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderRef]
	return o, ok
}

func (s *Store) GetOrderSummary(ctx context.Context, orderRef string) (*ports.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderRef]
	if !ok {
		return nil, domain.E(domain.CodeOrderNotFound, "order "+orderRef+" not found")
	}
	return &ports.OrderSummary{
		OrderRef:      o.ID,
		TotalAmount:   o.Total(),
		OrderNumber:   o.OrderNumber,
		RecipientName: o.RecipientName,
	}, nil
}

func (s *Store) GetOrderItems(ctx context.Context, orderRef string) ([]ports.OrderItemSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderRef]
	if !ok {
		return nil, domain.E(domain.CodeOrderNotFound, "order "+orderRef+" not found")
	}
	snap := make([]ports.OrderItemSnapshot, len(o.Items))
	for i, it := range o.Items {
		snap[i] = ports.OrderItemSnapshot{
			OrderItemID: it.ID,
			OwnerID:     it.OwnerID,
			LineAmount:  it.Subtotal(),
		}
	}
	return snap, nil
}

func (s *Store) MarkPaid(ctx context.Context, orderRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderRef]
	if !ok {
		return domain.E(domain.CodeOrderNotFound, "order "+orderRef+" not found")
	}
	o.markPaid()
	return nil
}

// MarkCancelled flips the order to CANCELLED only on full payment
// cancellation. Partial cancellations have no order field to land on yet, so
// they are logged and otherwise leave the order alone.
func (s *Store) MarkCancelled(ctx context.Context, orderRef string, amountThisTime, amountTotal int64, resultingStatus string, affectedItemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderRef]
	if !ok {
		return domain.E(domain.CodeOrderNotFound, "order "+orderRef+" not found")
	}
	if resultingStatus == string(domain.StatusCancelled) {
		o.cancel()
		return nil
	}
	slog.InfoContext(ctx, "partial payment cancellation recorded",
		"order_ref", orderRef, "amount", amountThisTime, "total_canceled", amountTotal, "items", affectedItemIDs)
	return nil
}
