// Package order holds the order aggregate the settlement engine collaborates
// with. The engine never touches order internals; it only sees the snapshot
// and state ports the store implements.
package order

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    string
	RecipientName string
	Items         []Item
	Status        Status
	CreatedAt     time.Time
}

type Item struct {
	ID        string
	OwnerID   string
	ProductID string
	Quantity  int
	UnitPrice int64
	Cancelled bool
}

func (i Item) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// Total is the order's authoritative payment amount.
func (o *Order) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	return total
}

func (o *Order) markPaid() {
	o.Status = StatusPaid
}

// cancel transitions the whole order to CANCELLED, marking every item.
func (o *Order) cancel() {
	o.Status = StatusCancelled
	for i := range o.Items {
		o.Items[i].Cancelled = true
	}
}
