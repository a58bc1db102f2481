package usecase

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
)

// UpdateStatus applies administrator and system driven transitions to an
// order and its payments. Moves outside the allow-list are rejected.
type UpdateStatus struct {
	repo  OrderRepo
	cache OrderCache
	rec   Recorder
}

func NewUpdateStatus(repo OrderRepo, cache OrderCache, rec Recorder) *UpdateStatus {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &UpdateStatus{repo: repo, cache: cache, rec: rec}
}

func (uc *UpdateStatus) Order(ctx context.Context, p Principal, orderID string, to domain.Status) (*domain.Order, error) {
	if err := requireManager(p); err != nil {
		return nil, err
	}
	if !to.IsValid() {
		return nil, newErr(ErrBadRequest, "Invalid order status %q", to)
	}
	cur, err := uc.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if cur.Status == to {
		return cur, nil
	}
	if err := cur.Status.Transition(to); err != nil {
		return nil, wrapErr(ErrBadRequest, err, "Cannot change order status from %s to %s", cur.Status, to)
	}

	ok, err := uc.repo.UpdateStatusIf(ctx, orderID, cur.Status, to, p.UserID)
	if err != nil {
		return nil, internal(err, "update order status")
	}
	if !ok {
		return nil, newErr(ErrConflict, "Order status changed concurrently, reload and retry")
	}

	logging.FromCtx(ctx).Info("order status changed",
		"order_id", orderID, "from", cur.Status, "to", to, "actor", p.UserID)
	uc.rec.StatusChanged("order", string(cur.Status), string(to))
	updated, err := uc.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	cacheStatus(ctx, uc.cache, updated)
	return updated, nil
}

func (uc *UpdateStatus) Payment(ctx context.Context, p Principal, orderID, paymentID string, to domain.PaymentStatus, txnID string) (*domain.Order, error) {
	if err := requireManager(p); err != nil {
		return nil, err
	}
	if !to.IsValid() {
		return nil, newErr(ErrBadRequest, "Invalid payment status %q", to)
	}
	pay, err := uc.repo.GetPayment(ctx, orderID, paymentID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Payment not found")
	}
	if err != nil {
		return nil, internal(err, "get payment")
	}
	if pay.Status != to || (txnID != "" && txnID != pay.TransactionID) {
		if err := pay.Status.Transition(to); err != nil {
			return nil, wrapErr(ErrBadRequest, err, "Cannot change payment status from %s to %s", pay.Status, to)
		}
		ok, err := uc.repo.UpdatePaymentStatusIf(ctx, orderID, paymentID, pay.Status, to, txnID)
		if err != nil {
			return nil, internal(err, "update payment status")
		}
		if !ok {
			return nil, newErr(ErrConflict, "Payment status changed concurrently, reload and retry")
		}
		if pay.Status != to {
			logging.FromCtx(ctx).Info("payment status changed",
				"order_id", orderID, "payment_id", paymentID, "from", pay.Status, "to", to, "actor", p.UserID)
			uc.rec.StatusChanged("payment", string(pay.Status), string(to))
		}
	}
	return uc.load(ctx, orderID)
}

func (uc *UpdateStatus) load(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := uc.repo.GetByID(ctx, orderID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, internal(err, "get order")
	}
	return o, nil
}

func requireManager(p Principal) error {
	if !p.Authenticated() {
		return newErr(ErrUnauthorized, "Unauthorized")
	}
	if !p.CanManageOrders() {
		return newErr(ErrForbidden, "Administrator access required")
	}
	return nil
}
