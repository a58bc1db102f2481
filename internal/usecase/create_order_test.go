package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_FromCartComputesTotals(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "1000", 5)
	addr := h.address(t, alice)
	ship := h.shippingMethod(t, "200")
	h.addToCart(t, alice, prod.ID, 2)

	o, err := h.create.Execute(ctx, usecase.CreateOrderInput{
		Principal:         alice,
		ShippingAddressID: addr.ID,
		ShippingMethodID:  ship.ID,
		// client claims a different total; server ignores it
		Hint: usecase.TotalsHint{Total: ptr(dec("1")), Shipping: ptr(dec("0"))},
	})
	require.NoError(t, err)

	assert.True(t, dec("2000").Equal(o.Subtotal), o.Subtotal.String())
	assert.True(t, dec("0").Equal(o.Tax))
	assert.True(t, dec("200").Equal(o.Shipping))
	assert.True(t, dec("2200").Equal(o.Total))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)))
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Regexp(t, `^ORD-[0-9A-Z]{26}$`, o.OrderNumber)
	require.NotNil(t, o.ShippingAddress)
	require.NotNil(t, o.ShippingMethod)

	cart, err := h.cart.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, cart, "cart is cleared with the order")

	cached, ok, _ := h.cache.GetStatus(ctx, o.ID)
	require.True(t, ok)
	assert.Equal(t, domain.Status("PENDING"), cached.Status)
	assert.Equal(t, alice.UserID, cached.UserID)
}

func TestCreateOrder_ItemsUseCatalogPriceAndTax(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create = usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders: h.orders, Carts: h.carts, Catalog: h.catRepo, Addresses: h.addrRepo, Shipping: h.shipRepo,
	}, usecase.OrderSettings{TaxRate: dec("0.1")})

	prod := h.product(t, "19.99", 10)
	addr := h.address(t, alice)

	o, err := h.create.Execute(ctx, usecase.CreateOrderInput{
		Principal:         alice,
		ShippingAddressID: addr.ID,
		Items:             []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 3, Price: ptr(dec("0.01"))}},
	})
	require.NoError(t, err)
	assert.True(t, dec("59.97").Equal(o.Subtotal), o.Subtotal.String())
	assert.True(t, dec("6").Equal(o.Tax), o.Tax.String())
	assert.True(t, dec("65.97").Equal(o.Total), o.Total.String())
	assert.True(t, dec("19.99").Equal(o.Items[0].Price))
	assert.Equal(t, "USD", o.Currency)
}

func TestCreateOrder_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 2)
	addr := h.address(t, alice)
	bobAddr := h.address(t, bob)
	inactive, err := h.shipping.Create(ctx, admin, usecase.ShippingMethodInput{Name: ptr("Old"), Cost: ptr(dec("1")), Active: ptr(false)})
	require.NoError(t, err)

	item := func(qty int) []usecase.CreateOrderItem {
		return []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: qty}}
	}
	cases := []struct {
		name string
		in   usecase.CreateOrderInput
		kind error
		msg  string
	}{
		{"anonymous", usecase.CreateOrderInput{ShippingAddressID: addr.ID, Items: item(1)}, usecase.ErrUnauthorized, "Unauthorized"},
		{"no address", usecase.CreateOrderInput{Principal: alice, Items: item(1)}, usecase.ErrBadRequest, "Shipping address is required"},
		{"empty cart", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID}, usecase.ErrBadRequest, "Cart is empty"},
		{"zero quantity", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID, Items: item(0)}, usecase.ErrBadRequest, "Item 1: quantity"},
		{"negative client price", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID,
			Items: []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 1, Price: ptr(dec("-1"))}}}, usecase.ErrBadRequest, "Item 1: price"},
		{"unknown product", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID,
			Items: []usecase.CreateOrderItem{{ProductID: "nope", Quantity: 1}}}, usecase.ErrBadRequest, "product nope not found"},
		{"insufficient stock", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID, Items: item(3)}, usecase.ErrBadRequest, "insufficient stock"},
		{"inactive shipping", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID, ShippingMethodID: inactive.ID, Items: item(1)}, usecase.ErrBadRequest, "not available"},
		{"foreign address", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: bobAddr.ID, Items: item(1)}, usecase.ErrNotFound, "Shipping address not found"},
		{"unknown address", usecase.CreateOrderInput{Principal: alice, ShippingAddressID: "missing", Items: item(1)}, usecase.ErrNotFound, "Shipping address not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.create.Execute(ctx, tc.in)
			require.ErrorIs(t, err, tc.kind)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}

	page, err := h.query.List(ctx, admin, usecase.ListOrdersInput{})
	require.NoError(t, err)
	assert.Zero(t, page.Pagination.Total, "no rejected request created an order")
}

func TestCreateOrder_IdempotencyKeyReplays(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	addr := h.address(t, alice)
	in := usecase.CreateOrderInput{
		Principal:         alice,
		IdempotencyKey:    "k-1",
		ShippingAddressID: addr.ID,
		Items:             []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 1}},
	}

	first, err := h.create.Execute(ctx, in)
	require.NoError(t, err)
	second, err := h.create.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	page, err := h.query.List(ctx, alice, usecase.ListOrdersInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)

	// a key held by an in-flight request is rejected
	locked, _ := h.idem.TryLock(ctx, alice.UserID, "k-2")
	require.True(t, locked)
	in.IdempotencyKey = "k-2"
	_, err = h.create.Execute(ctx, in)
	assert.ErrorIs(t, err, usecase.ErrDuplicate)
	assert.ErrorIs(t, err, usecase.ErrConflict)
}

func TestCreateOrder_FailureReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	addr := h.address(t, alice)
	in := usecase.CreateOrderInput{Principal: alice, IdempotencyKey: "k", ShippingAddressID: addr.ID}

	_, err := h.create.Execute(ctx, in)
	require.ErrorIs(t, err, usecase.ErrBadRequest)

	locked, err := h.idem.TryLock(ctx, alice.UserID, "k")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestCreateOrder_DoubleSubmitFromCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	addr := h.address(t, alice)
	h.addToCart(t, alice, prod.ID, 2)
	in := usecase.CreateOrderInput{Principal: alice, ShippingAddressID: addr.ID}

	_, err := h.create.Execute(ctx, in)
	require.NoError(t, err)
	_, err = h.create.Execute(ctx, in)
	require.ErrorIs(t, err, usecase.ErrBadRequest, "second submit finds the cart already cleared")

	p, err := h.catalog.Product(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity)
}

// lagAddresses hides an address for the first lookup.
type lagAddresses struct {
	usecase.AddressRepo
	calls atomic.Int32
}

func (l *lagAddresses) Get(ctx context.Context, id string) (*domain.Address, error) {
	if l.calls.Add(1) == 1 {
		return nil, usecase.ErrRecordNotFound
	}
	return l.AddressRepo.Get(ctx, id)
}

func TestCreateOrder_RetriesAddressLookupOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	addr := h.address(t, alice)
	lag := &lagAddresses{AddressRepo: h.addrRepo}
	create := usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders: h.orders, Carts: h.carts, Catalog: h.catRepo, Addresses: lag, Shipping: h.shipRepo,
	}, usecase.OrderSettings{AddressRetryDelay: 0})

	o, err := create.Execute(ctx, usecase.CreateOrderInput{
		Principal:         alice,
		ShippingAddressID: addr.ID,
		Items:             []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, addr.ID, o.ShippingAddressID)
	assert.Equal(t, int32(2), lag.calls.Load())
}

// brokenAddresses fails every lookup; creation proceeds and lets the insert decide.
type brokenAddresses struct{ usecase.AddressRepo }

func (brokenAddresses) Get(context.Context, string) (*domain.Address, error) {
	return nil, errors.New("connection reset")
}

func TestCreateOrder_AddressLookupErrorFallsThroughToInsert(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	create := usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders: h.orders, Carts: h.carts, Catalog: h.catRepo, Addresses: brokenAddresses{h.addrRepo}, Shipping: h.shipRepo,
	}, usecase.OrderSettings{})

	_, err := create.Execute(ctx, usecase.CreateOrderInput{
		Principal:         alice,
		ShippingAddressID: "does-not-exist",
		Items:             []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, usecase.ErrNotFound)
	assert.Contains(t, err.Error(), "Shipping address not found")
}

// collidingOrders reports a duplicate order number a fixed number of times.
type collidingOrders struct {
	usecase.OrderRepo
	remaining int
	numbers   []string
}

func (c *collidingOrders) Create(ctx context.Context, o *domain.Order, msg usecase.OutboxMessage) error {
	c.numbers = append(c.numbers, o.OrderNumber)
	if c.remaining > 0 {
		c.remaining--
		return usecase.ErrDuplicateKey
	}
	return c.OrderRepo.Create(ctx, o, msg)
}

func TestCreateOrder_OrderNumberCollision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	addr := h.address(t, alice)
	in := usecase.CreateOrderInput{
		Principal:         alice,
		ShippingAddressID: addr.ID,
		Items:             []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 1}},
	}

	once := &collidingOrders{OrderRepo: h.orders, remaining: 1}
	create := usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders: once, Carts: h.carts, Catalog: h.catRepo, Addresses: h.addrRepo, Shipping: h.shipRepo,
	}, usecase.OrderSettings{})
	o, err := create.Execute(ctx, in)
	require.NoError(t, err)
	require.Len(t, once.numbers, 2)
	assert.NotEqual(t, once.numbers[0], once.numbers[1])
	assert.Equal(t, once.numbers[1], o.OrderNumber)

	always := &collidingOrders{OrderRepo: h.orders, remaining: 5}
	create = usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders: always, Carts: h.carts, Catalog: h.catRepo, Addresses: h.addrRepo, Shipping: h.shipRepo,
	}, usecase.OrderSettings{})
	_, err = create.Execute(ctx, in)
	require.ErrorIs(t, err, usecase.ErrConflict)
	assert.Len(t, always.numbers, 2)
}

func TestCreateOrder_ExplicitEmptyItemsIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	addr := h.address(t, alice)
	h.addToCart(t, alice, prod.ID, 1)

	_, err := h.create.Execute(ctx, usecase.CreateOrderInput{
		Principal:         alice,
		ShippingAddressID: addr.ID,
		Items:             []usecase.CreateOrderItem{},
		ItemsGiven:        true,
	})
	require.ErrorIs(t, err, usecase.ErrBadRequest)
	assert.Contains(t, err.Error(), "Order items are required")

	cart, err := h.cart.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, cart, 1, "cart is untouched")

	page, err := h.query.List(ctx, alice, usecase.ListOrdersInput{})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

// forgetfulIdempotency cannot store results.
type forgetfulIdempotency struct{ *memIdempotency }

func (forgetfulIdempotency) Remember(context.Context, string, string, string) error {
	return errors.New("redis: connection refused")
}

func TestCreateOrder_RememberFailureReleasesKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	prod := h.product(t, "10", 10)
	addr := h.address(t, alice)
	idem := forgetfulIdempotency{newMemIdempotency()}
	create := usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders: h.orders, Carts: h.carts, Catalog: h.catRepo, Addresses: h.addrRepo, Shipping: h.shipRepo,
		Idempotency: idem,
	}, usecase.OrderSettings{})

	o, err := create.Execute(ctx, usecase.CreateOrderInput{
		Principal:         alice,
		IdempotencyKey:    "k-remember",
		ShippingAddressID: addr.ID,
		Items:             []usecase.CreateOrderItem{{ProductID: prod.ID, Quantity: 1}},
	})
	require.NoError(t, err, "the order itself was committed")
	require.NotEmpty(t, o.ID)

	locked, err := idem.TryLock(ctx, alice.UserID, "k-remember")
	require.NoError(t, err)
	assert.True(t, locked, "key is not left locked without a stored order")
}
