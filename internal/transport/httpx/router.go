package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/commercelab/settlement/internal/transport/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", handler.CreateOrder)
	r.Post("/orders/{orderRef}/items/{orderItemId}/cancel", handler.CancelOrderItem)

	r.Post("/payments/ready", handler.Ready)
	r.Post("/payments/confirm", handler.Confirm)
	r.Post("/payments/{paymentKey}/cancel", handler.Cancel)
	r.Post("/payments/order/{orderRef}/abandon", handler.Abandon)
	r.Get("/payments/order/{orderRef}", handler.GetPayment)

	return r
}
