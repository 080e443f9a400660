// Package app implements the settlement orchestrator: it readies, confirms,
// and cancels payments, fans a confirmed payment out into per-line-item
// splits, and keeps the payment ledger, split ledger, and order status
// mutually consistent.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/commercelab/settlement/internal/pkg/cache"
	"github.com/commercelab/settlement/internal/settlement/audit"
	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

const (
	reasonPartialItemCancel = "partial item cancel"
	reasonIdempotentFixup   = "(IDEMPOTENT) already canceled in PG"

	readyCacheTTL = 10 * time.Minute
)

// Config holds the gateway-launch parameters returned by Ready.
type Config struct {
	ClientKey  string
	SuccessURL string
	FailURL    string
}

// Service is the settlement orchestrator. Every operation is a
// request-scoped unit of work; there is no background scheduler here.
type Service struct {
	payments   ports.PaymentRepository
	splits     ports.SplitRepository
	locker     ports.SplitLocker
	gateway    ports.Gateway
	orders     ports.OrderSnapshot
	orderState ports.OrderState
	auditLog   audit.Repository // nil-safe: auditing skipped if nil
	cache      cache.Cache      // nil-safe: caching skipped if nil
	cfg        Config
	tracer     trace.Tracer
}

// NewService wires the orchestrator with its ports. auditLog and c may be
// nil, in which case audit rows and ready-info caching are skipped.
func NewService(
	payments ports.PaymentRepository,
	splits ports.SplitRepository,
	locker ports.SplitLocker,
	gateway ports.Gateway,
	orders ports.OrderSnapshot,
	orderState ports.OrderState,
	auditLog audit.Repository,
	c cache.Cache,
	cfg Config,
) *Service {
	return &Service{
		payments:   payments,
		splits:     splits,
		locker:     locker,
		gateway:    gateway,
		orders:     orders,
		orderState: orderState,
		auditLog:   auditLog,
		cache:      c,
		cfg:        cfg,
		tracer:     otel.Tracer("settlement"),
	}
}

// Ready validates that a checkout may launch the gateway for this order and
// returns the launch parameters. Read-only: no ledger state changes.
func (s *Service) Ready(ctx context.Context, orderRef string, amount int64) (*ReadyInfo, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Ready")
	defer span.End()

	if amount <= 0 {
		return nil, domain.E(domain.CodeInvalidAmount, "payment amount must be > 0")
	}

	summary, err := s.orders.GetOrderSummary(ctx, orderRef)
	if err != nil {
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domain.Wrap(domain.CodeOrderNotFound, "order summary lookup failed", err)
	}
	if summary.TotalAmount != amount {
		return nil, domain.E(domain.CodeInvalidAmount, "order total and requested amount do not match")
	}

	p, err := s.payments.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusReady {
		return nil, domain.E(domain.CodePaymentNotReady, "payment is not in READY state")
	}
	// Second check against the stored amount: defense in depth against a
	// tampered order total between order creation and checkout.
	if p.Amount != amount {
		return nil, domain.E(domain.CodeAmountMismatch, "stored payment amount does not match the order total")
	}

	// The cache is consulted only after every validation has passed, so a
	// warm entry can never answer for an order that would be rejected now.
	if info := s.cachedReadyInfo(ctx, orderRef); info != nil {
		s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, orderRef, audit.EventReadyChecked, 0, ""))
		return info, nil
	}

	info := &ReadyInfo{
		OrderRef:     orderRef,
		Amount:       amount,
		OrderName:    "order " + summary.OrderNumber,
		CustomerName: summary.RecipientName,
		ClientKey:    s.cfg.ClientKey,
		SuccessURL:   s.cfg.SuccessURL,
		FailURL:      s.cfg.FailURL,
	}
	s.cacheReadyInfo(ctx, info)
	s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, orderRef, audit.EventReadyChecked, 0, ""))
	return info, nil
}

// Confirm settles a payment against the gateway and fans it out into splits.
// Duplicate delivery (redirect replay, client retry) is absorbed: an
// already-PAID payment returns its current view without touching the gateway.
func (s *Service) Confirm(ctx context.Context, orderRef, gatewayRequestKey string, amount int64) (*PaymentView, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Confirm")
	defer span.End()

	if amount <= 0 {
		return nil, domain.E(domain.CodeInvalidAmount, "payment amount must be > 0")
	}

	p, err := s.payments.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if p.IsPaid() {
		return viewOf(p), nil
	}
	if p.IsCancelled() {
		return nil, domain.E(domain.CodeAlreadyCancelled, "payment is already cancelled")
	}
	if p.Amount != amount {
		return nil, domain.E(domain.CodeInvalidAmount, "requested amount does not match the stored payment amount")
	}

	res, err := s.gateway.Confirm(ctx, gatewayRequestKey, orderRef, amount)
	if err != nil {
		return nil, err
	}
	// Cross-check the provider's reported total when it reports one.
	if res.TotalAmount != 0 && res.TotalAmount != amount {
		return nil, domain.E(domain.CodeGatewayAmountMismatch, "gateway approved amount does not match the requested amount")
	}

	newSplits, err := s.buildSplits(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := p.MarkPaid(res.GatewayKey, res.ApprovedAt); err != nil {
		return nil, err
	}

	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	if len(newSplits) > 0 {
		if err := s.splits.SaveAll(ctx, newSplits); err != nil {
			return nil, err
		}
	}

	if err := s.orderState.MarkPaid(ctx, orderRef); err != nil {
		// The payment and splits are already persisted, and a retried
		// confirm short-circuits on the PAID check without re-notifying.
		// The order stays unpaid until reconciled manually, so this is
		// logged as an error, not just surfaced to the caller.
		slog.ErrorContext(ctx, "order notification failed after settlement was persisted; order needs reconciliation",
			"order_ref", orderRef, "error", err)
		return nil, err
	}

	s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, orderRef, audit.EventConfirmed, amount, p.GatewayKey))
	slog.InfoContext(ctx, "payment confirmed", "order_ref", orderRef, "amount", amount, "splits", len(newSplits))
	return viewOf(p), nil
}

// buildSplits creates one split per order line item, skipping any item a
// split already exists for, which makes confirm replays safe. An empty
// snapshot is a fatal upstream-data error: settlement cannot be split across
// zero recipients.
func (s *Service) buildSplits(ctx context.Context, p *domain.Payment) ([]*domain.Split, error) {
	items, err := s.orders.GetOrderItems(ctx, p.OrderRef)
	if err != nil {
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domain.Wrap(domain.CodeOrderNotFound, "order items lookup failed", err)
	}
	if len(items) == 0 {
		return nil, domain.E(domain.CodeOrderItemsEmpty, "order has no line items to settle")
	}

	splits := make([]*domain.Split, 0, len(items))
	for _, it := range items {
		exists, err := s.splits.ExistsByOrderItemID(ctx, it.OrderItemID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		sp, err := domain.NewSplit(p.ID, p.OrderRef, it.OrderItemID, it.OwnerID, it.LineAmount)
		if err != nil {
			return nil, err
		}
		splits = append(splits, sp)
	}
	return splits, nil
}

// Cancel performs a whole-payment cancellation. A nil amount cancels the
// full remaining balance. The gateway's own "already canceled" answer is
// absorbed: the ledger is reconciled with a correcting record and the call
// reports success instead of propagating the provider error.
func (s *Service) Cancel(ctx context.Context, gatewayKey string, amount *int64, reason string) (*CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Cancel")
	defer span.End()

	p, err := s.payments.GetByGatewayKey(ctx, gatewayKey)
	if err != nil {
		return nil, err
	}
	if p.IsCancelled() {
		return cancelResultOf(p), nil
	}

	remaining := p.Remaining()
	cancelAmount := remaining
	if amount != nil {
		cancelAmount = *amount
	}
	if cancelAmount <= 0 {
		return nil, domain.E(domain.CodeInvalidCancelAmount, "cancel amount must be > 0")
	}
	if cancelAmount > remaining {
		return nil, domain.E(domain.CodeExceedCancelAmount, "cancel amount exceeds the remaining balance")
	}

	res, err := s.gateway.Cancel(ctx, gatewayKey, reason, cancelAmount)
	if err != nil {
		return nil, err
	}

	if res.Status == ports.CancelAlreadyDone {
		return s.reconcileAlreadyCanceled(ctx, p, gatewayKey)
	}

	canceledAt := res.CanceledAt
	if canceledAt.IsZero() {
		canceledAt = time.Now().UTC()
	}
	if err := p.AppendCancellation(domain.NewCancellation(res.GatewayKey, cancelAmount, reason, canceledAt)); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	if err := s.notifyIfFullyCancelled(ctx, p, cancelAmount, nil); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, p.OrderRef, audit.EventCancelled, cancelAmount, gatewayKey))
	slog.InfoContext(ctx, "payment cancelled", "order_ref", p.OrderRef, "amount", cancelAmount, "status", p.Status)
	return cancelResultOf(p), nil
}

// reconcileAlreadyCanceled brings the ledger in line with a provider that
// has already settled the cancellation on its side.
func (s *Service) reconcileAlreadyCanceled(ctx context.Context, p *domain.Payment, gatewayKey string) (*CancelResult, error) {
	if rem := p.Remaining(); rem > 0 {
		rec := domain.NewCancellation(gatewayKey, rem, reasonIdempotentFixup, time.Now().UTC())
		if err := p.AppendCancellation(rec); err != nil {
			return nil, err
		}
		if err := s.payments.Save(ctx, p); err != nil {
			return nil, err
		}
		if err := s.notifyIfFullyCancelled(ctx, p, rem, nil); err != nil {
			return nil, err
		}
		s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, p.OrderRef, audit.EventCancelled, rem, gatewayKey))
		slog.WarnContext(ctx, "reconciled ledger with provider-side cancellation", "order_ref", p.OrderRef, "amount", rem)
	}
	return cancelResultOf(p), nil
}

// CancelOrderItem performs a line-item partial cancellation. The split row is
// held under an exclusive lock for the whole of validation, the gateway call,
// and persistence, so two cancels for the same item are linearized.
func (s *Service) CancelOrderItem(ctx context.Context, orderRef, orderItemID string, cancelAmount int64) (result *CancelResult, err error) {
	ctx, span := s.tracer.Start(ctx, "settlement.CancelOrderItem")
	defer span.End()

	if cancelAmount <= 0 {
		return nil, domain.E(domain.CodeInvalidCancelAmount, "cancel amount must be > 0")
	}

	release, err := s.locker.Acquire(ctx, orderItemID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(ctx); rerr != nil {
			slog.WarnContext(ctx, "failed to release split lock", "order_item_id", orderItemID, "error", rerr)
		}
	}()

	split, err := s.splits.GetByOrderItemID(ctx, orderItemID)
	if err != nil {
		return nil, err
	}
	if split.OrderRef != orderRef {
		return nil, domain.E(domain.CodeOrderMismatch, "split does not belong to the supplied order")
	}
	if cancelAmount > split.Remaining() {
		return nil, domain.E(domain.CodeExceedSplitCancel, "cancel amount exceeds the item's remaining balance")
	}

	p, err := s.payments.GetByOrderRef(ctx, split.OrderRef)
	if err != nil {
		return nil, err
	}
	// Coarser second net: splits are allocations of the payment total, so a
	// valid split cancel can still never exceed the payment's remaining.
	if cancelAmount > p.Remaining() {
		return nil, domain.E(domain.CodeExceedPaymentCancel, "cancel amount exceeds the payment's remaining balance")
	}

	res, err := s.gateway.Cancel(ctx, p.GatewayKey, reasonPartialItemCancel, cancelAmount)
	if err != nil {
		return nil, err
	}
	if res.Status == ports.CancelAlreadyDone {
		// The provider settled the whole payment already; reconcile at the
		// payment level, but the item-granular request itself cannot succeed.
		if _, rerr := s.reconcileAlreadyCanceled(ctx, p, p.GatewayKey); rerr != nil {
			return nil, rerr
		}
		return nil, domain.E(domain.CodeAlreadyCancelled, "payment already cancelled at the provider")
	}

	canceledAt := res.CanceledAt
	if canceledAt.IsZero() {
		canceledAt = time.Now().UTC()
	}
	if err := p.AppendCancellation(domain.NewCancellation(res.GatewayKey, cancelAmount, reasonPartialItemCancel, canceledAt)); err != nil {
		return nil, err
	}
	if err := split.AddCancellation(cancelAmount); err != nil {
		return nil, err
	}

	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	if err := s.splits.Save(ctx, split); err != nil {
		return nil, err
	}
	if err := s.notifyIfFullyCancelled(ctx, p, cancelAmount, []string{orderItemID}); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, p.OrderRef, audit.EventCancelItem, cancelAmount, p.GatewayKey))
	slog.InfoContext(ctx, "order item cancelled", "order_ref", orderRef, "order_item_id", orderItemID, "amount", cancelAmount)
	return cancelResultOf(p), nil
}

// Abandon gives up a confirmation that never completed: READY -> FAILED.
func (s *Service) Abandon(ctx context.Context, orderRef string) (*PaymentView, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Abandon")
	defer span.End()

	p, err := s.payments.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if err := p.Abandon(); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	s.appendAudit(ctx, audit.NewEntry(ctx, p.ID, orderRef, audit.EventAbandoned, 0, ""))
	return viewOf(p), nil
}

// GetByOrderRef returns the current payment view for an order.
func (s *Service) GetByOrderRef(ctx context.Context, orderRef string) (*PaymentView, error) {
	p, err := s.payments.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	return viewOf(p), nil
}

// notifyIfFullyCancelled pushes the cancellation into the order aggregate.
// The order only transitions on full cancellation; the port decides based on
// the resulting payment status.
func (s *Service) notifyIfFullyCancelled(ctx context.Context, p *domain.Payment, amountThisTime int64, itemIDs []string) error {
	if !p.IsCancelled() {
		return nil
	}
	return s.orderState.MarkCancelled(ctx, p.OrderRef, amountThisTime, p.CanceledAmount(), string(p.Status), itemIDs)
}

func (s *Service) appendAudit(ctx context.Context, e *audit.Entry) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Append(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to append settlement audit entry", "payment_id", e.PaymentID, "event", e.Event, "error", err)
	}
}

// cachedReadyInfo returns the cached launch parameters for an order, or nil
// on a miss or any cache failure. Failures are soft: the caller rebuilds.
func (s *Service) cachedReadyInfo(ctx context.Context, orderRef string) *ReadyInfo {
	if s.cache == nil {
		return nil
	}
	val, err := s.cache.Get(ctx, s.cache.GenerateKey("ready", orderRef))
	if err != nil || val == "" {
		return nil
	}
	var info ReadyInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil
	}
	return &info
}

func (s *Service) cacheReadyInfo(ctx context.Context, info *ReadyInfo) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(info)
	if err != nil {
		return
	}
	key := s.cache.GenerateKey("ready", info.OrderRef)
	if err := s.cache.Set(ctx, key, b, readyCacheTTL); err != nil {
		slog.WarnContext(ctx, "failed to cache ready info", "order_ref", info.OrderRef, "error", err)
	}
}
