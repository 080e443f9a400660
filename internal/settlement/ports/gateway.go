package ports

import (
	"context"
	"fmt"
	"time"
)

// GatewayConfirm is the provider's answer to a successful confirmation.
type GatewayConfirm struct {
	GatewayKey  string
	TotalAmount int64
	ApprovedAt  time.Time
}

// CancelStatus tags the outcome of a gateway cancel call. "Already canceled
// at the provider" is an explicit case, not an error to pattern-match, so the
// orchestrator's idempotency branch is a plain switch.
type CancelStatus string

const (
	CancelDone        CancelStatus = "DONE"
	CancelAlreadyDone CancelStatus = "ALREADY_CANCELED"
)

// GatewayCancel is the provider's answer to a cancel call.
type GatewayCancel struct {
	Status     CancelStatus
	GatewayKey string
	CanceledAt time.Time
}

// GatewayError is a typed provider failure carrying the provider's own error
// code. Transport failures and unrecognized codes both surface through it.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
}

// Gateway is the port to the external payment provider. Implementations must
// not retry on their own: a payment call is issued at most once per
// invocation and the caller owns retry policy.
type Gateway interface {
	Confirm(ctx context.Context, gatewayRequestKey, orderRef string, amount int64) (*GatewayConfirm, error)
	Cancel(ctx context.Context, gatewayKey, reason string, amount int64) (*GatewayCancel, error)
}
