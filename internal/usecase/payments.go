package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/google/uuid"
)

type CreatePayment struct {
	repo OrderRepo
	rec  Recorder
	now  func() time.Time
}

func NewCreatePayment(repo OrderRepo, rec Recorder) *CreatePayment {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &CreatePayment{repo: repo, rec: rec, now: time.Now}
}

// Execute records a payment for the full order total. Card and online
// payments are recorded as completed, cash on delivery as pending.
func (uc *CreatePayment) Execute(ctx context.Context, p Principal, orderID string, method domain.PaymentMethod) (*domain.Payment, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	method = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(method))))
	if !method.IsValid() {
		return nil, newErr(ErrBadRequest, "Invalid payment method %q (expected card, cash or online)", method)
	}
	o, err := uc.repo.GetByID(ctx, orderID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, internal(err, "get order")
	}
	if !o.OwnedBy(p.UserID) && !p.IsAdmin() {
		return nil, newErr(ErrForbidden, "You are not authorized to pay for this order")
	}
	if o.Status == domain.StatusCancelled {
		return nil, newErr(ErrBadRequest, "Order %s is cancelled", o.OrderNumber)
	}

	pay := &domain.Payment{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		Amount:        o.Total,
		Status:        method.InitialStatus(),
		PaymentMethod: method,
		CreatedAt:     uc.now().UTC(),
	}
	if method != domain.MethodCash {
		pay.TransactionID = uuid.NewString()
	}
	if err := uc.repo.AddPayment(ctx, pay); err != nil {
		return nil, internal(err, "create payment")
	}
	logging.FromCtx(ctx).Info("payment recorded",
		"order_id", o.ID, "payment_id", pay.ID, "method", method, "status", pay.Status, "amount", pay.Amount.String())
	uc.rec.PaymentCreated(string(method))
	return pay, nil
}
