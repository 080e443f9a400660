package tossapi

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commercelab/settlement/internal/settlement/ports"
)

// Ensure fakeGateway implements the port at compile time.
var _ ports.Gateway = (*fakeGateway)(nil)

// fakeGateway is an in-memory gateway intended for local development and
// manual testing only. Do NOT use in production. It approves every confirm
// and tracks canceled totals so it can emit the provider's "already
// canceled" signal the way the real one does.
type fakeGateway struct {
	mu       sync.Mutex
	approved map[string]int64 // gatewayKey -> approved amount
	canceled map[string]int64 // gatewayKey -> canceled total
}

// NewFakeGateway returns an in-memory Gateway for development/testing.
func NewFakeGateway() ports.Gateway {
	return &fakeGateway{
		approved: make(map[string]int64),
		canceled: make(map[string]int64),
	}
}

func (f *fakeGateway) Confirm(ctx context.Context, gatewayRequestKey, orderRef string, amount int64) (*ports.GatewayConfirm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := gatewayRequestKey
	if key == "" {
		key = "fake_" + uuid.NewString()
	}
	f.approved[key] = amount

	return &ports.GatewayConfirm{
		GatewayKey:  key,
		TotalAmount: amount,
		ApprovedAt:  time.Now().UTC(),
	}, nil
}

func (f *fakeGateway) Cancel(ctx context.Context, gatewayKey, reason string, amount int64) (*ports.GatewayCancel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	total, ok := f.approved[gatewayKey]
	if !ok {
		return nil, &ports.GatewayError{Code: "NOT_FOUND_PAYMENT", Message: "unknown payment key"}
	}
	if f.canceled[gatewayKey] >= total {
		return &ports.GatewayCancel{
			Status:     ports.CancelAlreadyDone,
			GatewayKey: gatewayKey,
			CanceledAt: time.Now().UTC(),
		}, nil
	}
	f.canceled[gatewayKey] += amount

	return &ports.GatewayCancel{
		Status:     ports.CancelDone,
		GatewayKey: gatewayKey,
		CanceledAt: time.Now().UTC(),
	}, nil
}
