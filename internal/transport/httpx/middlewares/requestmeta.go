package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/commercelab/settlement/internal/pkg/telemetry"
)

// AttachRequestMetadata copies the chi request id into the telemetry context
// so every log line emitted while handling the request carries it. Must be
// mounted after chi's RequestID middleware.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID := middleware.GetReqID(r.Context()); requestID != "" {
			r = r.WithContext(telemetry.WithRequestID(r.Context(), requestID))
		}
		next.ServeHTTP(w, r)
	})
}
