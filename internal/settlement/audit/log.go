// Package audit defines the append-only settlement log.
//
// Every transition the orchestrator performs is recorded as an immutable row.
// It serves two purposes:
//
//  1. Observability: the log can be queried to see exactly what happened to a
//     payment, and joined with a distributed trace via the trace_id field.
//
//  2. Reconciliation: when the gateway's view and the ledger disagree, the
//     log shows which operation wrote what, and when.
package audit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Event names one orchestrator transition.
type Event string

const (
	EventReadyChecked Event = "READY_CHECKED"
	EventConfirmed    Event = "CONFIRMED"
	EventCancelled    Event = "CANCELLED"
	EventCancelItem   Event = "CANCEL_ITEM"
	EventAbandoned    Event = "ABANDONED"
)

// Entry is a single row in the settlement log.
type Entry struct {
	// PaymentID identifies the payment this transition belongs to.
	PaymentID string

	// OrderRef lets the log be joined with order data.
	OrderRef string

	// Event is the transition that was performed.
	Event Event

	// Amount is the monetary amount this transition moved (0 for reads).
	Amount int64

	// GatewayKey is the provider reference involved, if any.
	GatewayKey string

	// TraceID is the W3C trace ID extracted from the active OpenTelemetry
	// span, so a log row can be followed straight into the trace backend.
	TraceID string

	// SpanID pinpoints the exact span within the trace.
	SpanID string

	// RecordedAt is the wall-clock time of this entry.
	RecordedAt time.Time
}

// NewEntry builds an entry with trace identifiers extracted from ctx.
// Outside an active span (e.g. unit tests) both ids are empty strings.
func NewEntry(ctx context.Context, paymentID, orderRef string, event Event, amount int64, gatewayKey string) *Entry {
	e := &Entry{
		PaymentID:  paymentID,
		OrderRef:   orderRef,
		Event:      event,
		Amount:     amount,
		GatewayKey: gatewayKey,
		RecordedAt: time.Now().UTC(),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
