package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

// FulfillmentActor is recorded in the status history for moves made by the
// fulfillment service.
const FulfillmentActor = "fulfillment"

type StatusUpdater interface {
	Order(ctx context.Context, p usecase.Principal, orderID string, to domain.Status) (*domain.Order, error)
}

// FulfillmentHandler applies fulfillment.events to orders through the same
// guarded transition an administrator uses.
type FulfillmentHandler struct {
	Updater StatusUpdater
}

func NewFulfillmentHandler(u StatusUpdater) *FulfillmentHandler {
	return &FulfillmentHandler{Updater: u}
}

var fulfillmentPrincipal = usecase.Principal{UserID: FulfillmentActor, Role: usecase.RoleSystem}

func (h *FulfillmentHandler) Handle(ctx context.Context, _, value []byte) error {
	var ev usecase.FulfillmentEventMsg
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSkip, err)
	}
	if ev.OrderID == "" {
		return fmt.Errorf("%w: missing orderId", ErrSkip)
	}
	to := domain.Status(strings.ToUpper(strings.TrimSpace(ev.Status)))

	_, err := h.Updater.Order(ctx, fulfillmentPrincipal, ev.OrderID, to)
	switch {
	case err == nil:
		logging.FromCtx(ctx).Info("fulfillment event applied",
			"order_id", ev.OrderID, "status", to, "carrier", ev.Carrier, "tracking", ev.TrackingNumber)
		return nil
	case errors.Is(err, usecase.ErrBadRequest), errors.Is(err, usecase.ErrNotFound):
		return fmt.Errorf("%w: order %s: %v", ErrSkip, ev.OrderID, err)
	default:
		return err
	}
}
