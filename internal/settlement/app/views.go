package app

import (
	"time"

	"github.com/commercelab/settlement/internal/settlement/domain"
)

// ReadyInfo carries the gateway-launch parameters the checkout page needs.
type ReadyInfo struct {
	OrderRef     string `json:"order_ref"`
	Amount       int64  `json:"amount"`
	OrderName    string `json:"order_name"`
	CustomerName string `json:"customer_name"`
	ClientKey    string `json:"client_key"`
	SuccessURL   string `json:"success_url"`
	FailURL      string `json:"fail_url"`
}

// PaymentView is the read model returned by confirm and query operations.
type PaymentView struct {
	PaymentID      string     `json:"payment_id"`
	OrderRef       string     `json:"order_ref"`
	Amount         int64      `json:"amount"`
	CanceledAmount int64      `json:"canceled_amount"`
	Status         string     `json:"status"`
	GatewayKey     string     `json:"gateway_key,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
}

// CancelResult reports the payment state after a cancellation.
type CancelResult struct {
	GatewayKey     string `json:"gateway_key"`
	Status         string `json:"status"`
	CanceledAmount int64  `json:"canceled_amount"`
}

func viewOf(p *domain.Payment) *PaymentView {
	return &PaymentView{
		PaymentID:      p.ID,
		OrderRef:       p.OrderRef,
		Amount:         p.Amount,
		CanceledAmount: p.CanceledAmount(),
		Status:         string(p.Status),
		GatewayKey:     p.GatewayKey,
		ApprovedAt:     p.ApprovedAt,
	}
}

func cancelResultOf(p *domain.Payment) *CancelResult {
	return &CancelResult{
		GatewayKey:     p.GatewayKey,
		Status:         string(p.Status),
		CanceledAmount: p.CanceledAmount(),
	}
}
