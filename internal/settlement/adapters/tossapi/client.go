// Package tossapi is the HTTP adapter for the external payment gateway.
// The wire shapes follow the Toss Payments v1 API: Basic auth with the
// secret key, JSON bodies, and error responses carrying {code, message}.
package tossapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/commercelab/settlement/internal/settlement/ports"
)

// alreadyCanceledCode is the provider's idempotency signal: the payment was
// cancelled on their side already. It is surfaced as a tagged outcome, not an
// error, so the orchestrator can absorb it explicitly.
const alreadyCanceledCode = "ALREADY_CANCELED_PAYMENT"

// Client calls the gateway over HTTP. It never retries: payment calls are
// issued at most once per invocation and retry policy belongs to the caller.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

var _ ports.Gateway = (*Client)(nil)

// NewClient builds a gateway client. secretKey is the provider-issued server
// key; it is sent as Basic auth with an empty password, per the provider.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResponse struct {
	PaymentKey  string    `json:"paymentKey"`
	TotalAmount int64     `json:"totalAmount"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

type cancelRequest struct {
	CancelReason string `json:"cancelReason"`
	CancelAmount int64  `json:"cancelAmount"`
}

type cancelResponse struct {
	PaymentKey string    `json:"paymentKey"`
	CanceledAt time.Time `json:"canceledAt"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Confirm(ctx context.Context, gatewayRequestKey, orderRef string, amount int64) (*ports.GatewayConfirm, error) {
	var res confirmResponse
	err := c.post(ctx, c.baseURL+"/v1/payments/confirm", confirmRequest{
		PaymentKey: gatewayRequestKey,
		OrderID:    orderRef,
		Amount:     amount,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &ports.GatewayConfirm{
		GatewayKey:  res.PaymentKey,
		TotalAmount: res.TotalAmount,
		ApprovedAt:  res.ApprovedAt,
	}, nil
}

func (c *Client) Cancel(ctx context.Context, gatewayKey, reason string, amount int64) (*ports.GatewayCancel, error) {
	var res cancelResponse
	err := c.post(ctx, c.baseURL+"/v1/payments/"+gatewayKey+"/cancel", cancelRequest{
		CancelReason: reason,
		CancelAmount: amount,
	}, &res)
	if err != nil {
		var ge *ports.GatewayError
		if errors.As(err, &ge) && ge.Code == alreadyCanceledCode {
			return &ports.GatewayCancel{
				Status:     ports.CancelAlreadyDone,
				GatewayKey: gatewayKey,
				CanceledAt: time.Now().UTC(),
			}, nil
		}
		return nil, err
	}
	return &ports.GatewayCancel{
		Status:     ports.CancelDone,
		GatewayKey: res.PaymentKey,
		CanceledAt: res.CanceledAt,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tossapi: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("tossapi: build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ports.GatewayError{Code: "NETWORK_ERROR", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&er); decodeErr != nil || er.Code == "" {
			return &ports.GatewayError{
				Code:    "UNEXPECTED_RESPONSE",
				Message: fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode),
			}
		}
		return &ports.GatewayError{Code: er.Code, Message: er.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ports.GatewayError{Code: "MALFORMED_RESPONSE", Message: err.Error()}
	}
	return nil
}
