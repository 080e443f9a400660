package httpx

type ReadyRequest struct {
	OrderRef string `json:"order_ref"`
	Amount   int64  `json:"amount"`
}

type ConfirmRequest struct {
	OrderRef   string `json:"order_ref"`
	PaymentKey string `json:"payment_key"`
	Amount     int64  `json:"amount"`
}

type CancelRequest struct {
	CancelReason string `json:"cancel_reason"`
	CancelAmount *int64 `json:"cancel_amount,omitempty"`
}

type CancelItemRequest struct {
	CancelAmount int64 `json:"cancel_amount"`
}

type CreateOrderRequest struct {
	CustomerID    string               `json:"customer_id"`
	RecipientName string               `json:"recipient_name"`
	Items         []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	ProductID string `json:"product_id"`
	OwnerID   string `json:"owner_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type OrderResponse struct {
	OrderRef    string              `json:"order_ref"`
	OrderNumber string              `json:"order_number"`
	Status      string              `json:"status"`
	Total       int64               `json:"total"`
	Items       []OrderItemResponse `json:"items"`
}

type OrderItemResponse struct {
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	OwnerID     string `json:"owner_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
