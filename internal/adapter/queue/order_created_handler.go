package queue

import (
	"context"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

// Notifier tells the customer about their order.
type Notifier interface {
	OrderConfirmation(ctx context.Context, msg usecase.OrderCreatedMsg) error
}

// OrderCreatedHandler sends the confirmation email for order.created events.
type OrderCreatedHandler struct {
	Notifier Notifier
}

func NewOrderCreatedHandler(n Notifier) *OrderCreatedHandler {
	return &OrderCreatedHandler{Notifier: n}
}

// HandleCreate is intended to be used with the JSON adapter (queue.JSONHandler[OrderCreatedMsg]).
func (h *OrderCreatedHandler) HandleCreate(ctx context.Context, msg usecase.OrderCreatedMsg) error {
	if msg.Email == "" {
		logging.FromCtx(ctx).Info("order created without contact email, skipping confirmation", "order_id", msg.OrderID)
		return nil
	}
	return h.Notifier.OrderConfirmation(ctx, msg)
}
