package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderItem struct {
	ProductID string
	VariantID string
	Quantity  int
	Price     *decimal.Decimal // client hint only
}

// Totals the client displayed at checkout. Compared, never persisted.
type TotalsHint struct {
	Subtotal, Tax, Shipping, Total *decimal.Decimal
}

type CreateOrderInput struct {
	Principal         Principal
	IdempotencyKey    string
	ShippingAddressID string
	ShippingMethodID  string
	Items             []CreateOrderItem
	ItemsGiven        bool // false = build the order from the server-side cart
	Hint              TotalsHint
}

type OrderSettings struct {
	TaxRate           decimal.Decimal
	Currency          string
	AddressRetryDelay time.Duration
}

type CreateOrderDeps struct {
	Orders      OrderRepo
	Carts       CartRepo
	Catalog     CatalogRepo
	Addresses   AddressRepo
	Shipping    ShippingRepo
	Idempotency IdempotencyStore // optional
	Cache       OrderCache       // optional
	Recorder    Recorder         // optional
}

type CreateOrder struct {
	CreateOrderDeps
	cfg OrderSettings
	now func() time.Time
}

func NewCreateOrder(deps CreateOrderDeps, cfg OrderSettings) *CreateOrder {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &CreateOrder{CreateOrderDeps: deps, cfg: cfg, now: time.Now}
}

func (uc *CreateOrder) Execute(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	log := logging.FromCtx(ctx)
	p := in.Principal
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	addressID := strings.TrimSpace(in.ShippingAddressID)
	if addressID == "" {
		return nil, newErr(ErrBadRequest, "Shipping address is required")
	}

	// Idempotency: replay a finished request, reject a concurrent one.
	if in.IdempotencyKey != "" && uc.Idempotency != nil {
		if id, ok, err := uc.Idempotency.Recall(ctx, p.UserID, in.IdempotencyKey); err == nil && ok {
			log.Info("order replayed from idempotency key", "order_id", id)
			return uc.Orders.GetByID(ctx, id)
		}
		locked, err := uc.Idempotency.TryLock(ctx, p.UserID, in.IdempotencyKey)
		if err != nil {
			return nil, internal(err, "idempotency lock")
		}
		if !locked {
			return nil, ErrDuplicate
		}
		done := false
		defer func() {
			if !done {
				_ = uc.Idempotency.Release(context.WithoutCancel(ctx), p.UserID, in.IdempotencyKey)
			}
		}()
		order, err := uc.create(ctx, in, addressID)
		if err != nil {
			return nil, err
		}
		// The deferred Release runs unless the order id was stored.
		if err := uc.Idempotency.Remember(ctx, p.UserID, in.IdempotencyKey, order.ID); err != nil {
			log.Warn("idempotency remember failed, releasing key", "order_id", order.ID, "err", err)
			return order, nil
		}
		done = true
		return order, nil
	}
	return uc.create(ctx, in, addressID)
}

func (uc *CreateOrder) create(ctx context.Context, in CreateOrderInput, addressID string) (*domain.Order, error) {
	log := logging.FromCtx(ctx)
	p := in.Principal

	items, err := uc.resolveItems(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := uc.checkAddress(ctx, p.UserID, addressID); err != nil {
		return nil, err
	}

	shipping := decimal.Zero
	if in.ShippingMethodID != "" {
		m, err := uc.Shipping.Get(ctx, in.ShippingMethodID)
		if errors.Is(err, ErrRecordNotFound) || (err == nil && !m.Active) {
			return nil, newErr(ErrBadRequest, "Shipping method %s is not available", in.ShippingMethodID)
		}
		if err != nil {
			return nil, internal(err, "load shipping method")
		}
		shipping = m.Cost
	}

	now := uc.now().UTC()
	order := &domain.Order{
		ID:                uuid.NewString(),
		UserID:            p.UserID,
		Status:            domain.StatusPending,
		Currency:          uc.cfg.Currency,
		ShippingAddressID: addressID,
		ShippingMethodID:  in.ShippingMethodID,
		Items:             items,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
	}
	order.ApplyTotals(uc.cfg.TaxRate, shipping)
	if err := order.Validate(); err != nil {
		return nil, wrapErr(ErrBadRequest, err, "Order total must be positive")
	}
	uc.compareHint(ctx, order, in.Hint)

	// A unique-index hit on the order number gets one fresh number.
	for attempt := 0; ; attempt++ {
		order.OrderNumber, err = NewOrderNumber()
		if err != nil {
			return nil, internal(err, "order number")
		}
		var msg OutboxMessage
		msg, err = outboxFor(order, p.Email)
		if err != nil {
			return nil, internal(err, "encode order event")
		}
		err = uc.Orders.Create(ctx, order, msg)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, ErrDuplicateKey) && attempt == 0:
			log.Warn("order number collision, retrying", "order_number", order.OrderNumber)
			continue
		case errors.Is(err, ErrDuplicateKey):
			return nil, wrapErr(ErrConflict, err, "Order number already exists, please retry")
		case errors.Is(err, ErrStockConflict):
			return nil, wrapErr(ErrConflict, err, "Insufficient stock for one or more items, please review your cart")
		case errors.Is(err, ErrRecordNotFound):
			return nil, wrapErr(ErrNotFound, err, "Shipping address not found")
		default:
			return nil, internal(err, "create order")
		}
	}

	log.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", p.UserID,
		"total", order.Total.String(),
		"items", len(order.Items),
	)
	uc.Recorder.OrderCreated(order.Total.InexactFloat64())

	created, err := uc.Orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, internal(err, "reload order")
	}
	cacheStatus(ctx, uc.Cache, created)
	return created, nil
}

// resolveItems takes request items, or the caller's cart when the request
// carried no item list, and prices each line from the catalog.
func (uc *CreateOrder) resolveItems(ctx context.Context, in CreateOrderInput) ([]domain.OrderItem, error) {
	reqItems := in.Items
	emptyMsg := "Order items are required"
	if !in.ItemsGiven && len(reqItems) == 0 {
		emptyMsg = "Cart is empty"
		cart, err := uc.Carts.List(ctx, in.Principal.UserID)
		if err != nil {
			return nil, internal(err, "load cart")
		}
		for _, ci := range cart {
			reqItems = append(reqItems, CreateOrderItem{
				ProductID: ci.ProductID,
				VariantID: ci.VariantID,
				Quantity:  ci.Quantity,
			})
		}
	}
	if len(reqItems) == 0 {
		return nil, newErr(ErrBadRequest, "%s", emptyMsg)
	}

	requested := make(map[string]int, len(reqItems))
	out := make([]domain.OrderItem, 0, len(reqItems))
	for i, it := range reqItems {
		n := i + 1
		if it.ProductID == "" {
			return nil, newErr(ErrBadRequest, "Item %d: productId is required", n)
		}
		if it.Quantity <= 0 {
			return nil, newErr(ErrBadRequest, "Item %d: quantity must be a positive integer, got %d", n, it.Quantity)
		}
		if it.Price != nil && !it.Price.IsPositive() {
			return nil, newErr(ErrBadRequest, "Item %d: price must be a positive number, got %s", n, it.Price.String())
		}

		prod, err := uc.Catalog.GetProduct(ctx, it.ProductID)
		if errors.Is(err, ErrRecordNotFound) || (err == nil && !prod.Active) {
			return nil, newErr(ErrBadRequest, "Item %d: product %s not found", n, it.ProductID)
		}
		if err != nil {
			return nil, internal(err, "load product")
		}
		if it.VariantID != "" {
			if _, ok := prod.FindVariant(it.VariantID, "", ""); !ok {
				return nil, newErr(ErrBadRequest, "Item %d: variant %s not found for product %s", n, it.VariantID, it.ProductID)
			}
		}

		price := prod.EffectivePrice()
		if !price.IsPositive() {
			return nil, newErr(ErrBadRequest, "Item %d: product %s has no valid price", n, it.ProductID)
		}
		if it.Price != nil && !it.Price.Equal(price) {
			logging.FromCtx(ctx).Warn("client item price differs from catalog",
				"product_id", it.ProductID, "client", it.Price.String(), "catalog", price.String())
		}

		key := it.ProductID + "/" + it.VariantID
		requested[key] += it.Quantity
		if stock := prod.StockFor(it.VariantID, "", ""); requested[key] > stock {
			return nil, newErr(ErrBadRequest, "Item %d: insufficient stock for product %s (requested %d, available %d)",
				n, it.ProductID, requested[key], stock)
		}

		out = append(out, domain.OrderItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}
	return out, nil
}

// checkAddress tolerates read-after-write lag between the address and order
// calls with a single delayed retry. Lookup errors are logged and the insert
// is left to fail on its own.
func (uc *CreateOrder) checkAddress(ctx context.Context, userID, id string) error {
	log := logging.FromCtx(ctx)
	for attempt := 0; attempt < 2; attempt++ {
		a, err := uc.Addresses.Get(ctx, id)
		switch {
		case err == nil && a.UserID == userID:
			return nil
		case err == nil:
			log.Warn("shipping address belongs to another user", "address_id", id, "user_id", userID)
			return newErr(ErrNotFound, "Shipping address not found")
		case !errors.Is(err, ErrRecordNotFound):
			log.Error("shipping address lookup failed", "address_id", id, "err", err)
			return nil
		}
		if attempt == 0 && uc.cfg.AddressRetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(uc.cfg.AddressRetryDelay):
			}
		}
	}
	return newErr(ErrNotFound, "Shipping address not found")
}

func (uc *CreateOrder) compareHint(ctx context.Context, o *domain.Order, h TotalsHint) {
	check := func(field string, client *decimal.Decimal, server decimal.Decimal) {
		if client != nil && !client.Round(2).Equal(server) {
			logging.FromCtx(ctx).Warn("client total differs from server total",
				"field", field, "client", client.String(), "server", server.String(), "user_id", o.UserID)
		}
	}
	check("subtotal", h.Subtotal, o.Subtotal)
	check("tax", h.Tax, o.Tax)
	check("shipping", h.Shipping, o.Shipping)
	check("total", h.Total, o.Total)
}

func outboxFor(o *domain.Order, email string) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderCreatedMsg{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Email:       email,
		Total:       o.Total.StringFixed(2),
		Currency:    o.Currency,
		ItemCount:   len(o.Items),
		CreatedAt:   o.CreatedAt,
	})
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:            uuid.NewString(),
		Channel:       ChannelOrderCreated,
		Payload:       payload,
		Status:        OutboxPending,
		NextAttemptAt: o.CreatedAt,
		CreatedAt:     o.CreatedAt,
	}, nil
}
