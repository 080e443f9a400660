package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commercelab/settlement/internal/order"
	"github.com/commercelab/settlement/internal/settlement/app"
	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

// Handler exposes the settlement engine over HTTP.
type Handler struct {
	settlement *app.Service
	orders     *order.Store
}

func NewHandler(settlement *app.Service, orders *order.Store) *Handler {
	return &Handler{settlement: settlement, orders: orders}
}

// CreateOrder persists a PENDING order together with its READY payment.
// This stands in for the order-creation workflow that fronts the engine.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]order.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.Item{
			ProductID: it.ProductID,
			OwnerID:   it.OwnerID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	o, err := h.orders.CreateOrder(r.Context(), req.CustomerID, req.RecipientName, items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	slog.InfoContext(r.Context(), "order created", "order_ref", o.ID, "total", o.Total())
	writeJSON(w, http.StatusCreated, mapOrderToResponse(o))
}

// Ready validates the checkout and returns gateway-launch parameters.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	var req ReadyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	info, err := h.settlement.Ready(r.Context(), req.OrderRef, req.Amount)
	if err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Confirm settles the payment after the gateway redirect.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	view, err := h.settlement.Confirm(r.Context(), req.OrderRef, req.PaymentKey, req.Amount)
	if err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Cancel performs a whole-payment cancellation by gateway key.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	paymentKey := chi.URLParam(r, "paymentKey")
	if paymentKey == "" {
		writeError(w, http.StatusBadRequest, "payment_key_required", "")
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	result, err := h.settlement.Cancel(r.Context(), paymentKey, req.CancelAmount, req.CancelReason)
	if err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CancelOrderItem performs a line-item partial cancellation.
func (h *Handler) CancelOrderItem(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")
	orderItemID := chi.URLParam(r, "orderItemId")

	var req CancelItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	result, err := h.settlement.CancelOrderItem(r.Context(), orderRef, orderItemID, req.CancelAmount)
	if err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Abandon gives up a READY payment whose confirmation will never arrive.
func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")

	view, err := h.settlement.Abandon(r.Context(), orderRef)
	if err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPayment returns the current payment view for an order.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")

	view, err := h.settlement.GetByOrderRef(r.Context(), orderRef)
	if err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func mapOrderToResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			OrderItemID: it.ID,
			ProductID:   it.ProductID,
			OwnerID:     it.OwnerID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return OrderResponse{
		OrderRef:    o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Total:       o.Total(),
		Items:       items,
	}
}

// statusFor maps settlement error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case domain.CodeOrderNotFound, domain.CodePaymentNotFound, domain.CodeSplitNotFound:
		return http.StatusNotFound
	case domain.CodePaymentNotReady, domain.CodeAmountMismatch, domain.CodeAlreadyCancelled, domain.CodeLockConflict:
		return http.StatusConflict
	case domain.CodeInvalidAmount, domain.CodeInvalidCancelAmount, domain.CodeExceedCancelAmount,
		domain.CodeExceedSplitCancel, domain.CodeExceedPaymentCancel, domain.CodeOrderMismatch:
		return http.StatusBadRequest
	case domain.CodeGatewayAmountMismatch, domain.CodeOrderItemsEmpty, domain.CodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSettlementError(w http.ResponseWriter, r *http.Request, err error) {
	var ge *ports.GatewayError
	if errors.As(err, &ge) {
		slog.ErrorContext(r.Context(), "gateway failure", "code", ge.Code, "error", ge.Message)
		writeError(w, http.StatusBadGateway, domain.CodeGatewayError, ge.Error())
		return
	}

	var se *domain.Error
	if errors.As(err, &se) {
		writeError(w, statusFor(se.Code), se.Code, se.Message)
		return
	}

	slog.ErrorContext(r.Context(), "settlement operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
