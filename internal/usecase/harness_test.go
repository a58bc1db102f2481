package usecase_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aq2208/gorder-storefront/internal/adapter/repo"
	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	admin = usecase.Principal{UserID: "admin-1", Email: "ops@example.com", Role: usecase.RoleAdmin}
	alice = usecase.Principal{UserID: "alice", Email: "alice@example.com", Role: usecase.RoleCustomer}
	bob   = usecase.Principal{UserID: "bob", Email: "bob@example.com", Role: usecase.RoleCustomer}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func ptr[T any](v T) *T            { return &v }

type harness struct {
	orders    *repo.OrderRepo
	carts     *repo.CartRepo
	addrRepo  *repo.AddressRepo
	catRepo   *repo.CatalogRepo
	shipRepo  *repo.ShippingRepo
	idem      *memIdempotency
	cache     *memCache
	create    *usecase.CreateOrder
	query     *usecase.OrderQuery
	status    *usecase.UpdateStatus
	payments  *usecase.CreatePayment
	addresses *usecase.Addresses
	shipping  *usecase.ShippingMethods
	catalog   *usecase.Catalog
	cart      *usecase.Cart
	category  *domain.Category
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repo.Open(ctx, repo.DriverSQLite, filepath.Join(t.TempDir(), "uc.db"), repo.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = repo.Migrate(ctx, db, repo.DriverSQLite, nil)
	require.NoError(t, err)

	h := &harness{
		orders:   repo.NewOrderRepo(db),
		carts:    repo.NewCartRepo(db),
		addrRepo: repo.NewAddressRepo(db),
		catRepo:  repo.NewCatalogRepo(db),
		shipRepo: repo.NewShippingRepo(db),
		idem:     newMemIdempotency(),
		cache:    newMemCache(),
	}
	h.create = usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders:      h.orders,
		Carts:       h.carts,
		Catalog:     h.catRepo,
		Addresses:   h.addrRepo,
		Shipping:    h.shipRepo,
		Idempotency: h.idem,
		Cache:       h.cache,
	}, usecase.OrderSettings{Currency: "USD", AddressRetryDelay: 10 * time.Millisecond})
	h.query = usecase.NewOrderQuery(h.orders, h.cache)
	h.status = usecase.NewUpdateStatus(h.orders, h.cache, nil)
	h.payments = usecase.NewCreatePayment(h.orders, nil)
	h.addresses = usecase.NewAddresses(h.addrRepo)
	h.shipping = usecase.NewShippingMethods(h.shipRepo, h.cache)
	h.catalog = usecase.NewCatalog(h.catRepo)
	h.cart = usecase.NewCart(h.carts, h.catRepo)

	h.category, err = h.catalog.CreateCategory(ctx, admin, usecase.CategoryInput{Name: "Shoes"})
	require.NoError(t, err)
	return h
}

var productSeq atomic.Int64

func (h *harness) product(t *testing.T, price string, qty int, variants ...usecase.VariantInput) *domain.Product {
	t.Helper()
	p, err := h.catalog.CreateProduct(context.Background(), admin, usecase.ProductInput{
		CategoryID: h.category.ID,
		Name:       fmt.Sprintf("Runner %d", productSeq.Add(1)),
		Price:      dec(price),
		Quantity:   qty,
		Variants:   variants,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) address(t *testing.T, p usecase.Principal) *domain.Address {
	t.Helper()
	a, err := h.addresses.Create(context.Background(), p, usecase.AddressInput{
		FullName:   "Ada King Lovelace",
		Address1:   "12 St James's Square",
		City:       "London",
		PostalCode: "SW1Y 4JH",
		Country:    "GB",
		IsDefault:  true,
	})
	require.NoError(t, err)
	return a
}

func (h *harness) shippingMethod(t *testing.T, cost string) *domain.ShippingMethod {
	t.Helper()
	m, err := h.shipping.Create(context.Background(), admin, usecase.ShippingMethodInput{
		Name: ptr("Courier"),
		Cost: ptr(dec(cost)),
	})
	require.NoError(t, err)
	return m
}

func (h *harness) addToCart(t *testing.T, p usecase.Principal, productID string, qty int) {
	t.Helper()
	_, err := h.cart.Add(context.Background(), p, usecase.AddCartItemInput{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

type memIdempotency struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{locks: map[string]bool{}, values: map[string]string{}}
}

func (m *memIdempotency) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if m.locks[k] {
		return false, nil
	}
	m.locks[k] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+":"+key)
	return nil
}

func (m *memIdempotency) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = value
	return nil
}

func (m *memIdempotency) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

type memCache struct {
	mu       sync.Mutex
	status   map[string]usecase.OrderStatus
	methods  map[string][]domain.ShippingMethod
	hits     int
	invalids int
}

func newMemCache() *memCache {
	return &memCache{status: map[string]usecase.OrderStatus{}, methods: map[string][]domain.ShippingMethod{}}
}

func (c *memCache) SetStatus(_ context.Context, st usecase.OrderStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[st.OrderID] = st
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id string) (usecase.OrderStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.status[id]
	return st, ok, nil
}

func (c *memCache) GetMethods(_ context.Context, key string) ([]domain.ShippingMethod, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.methods[key]
	if ok {
		c.hits++
	}
	return m, ok, nil
}

func (c *memCache) SetMethods(_ context.Context, key string, methods []domain.ShippingMethod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[key] = methods
	return nil
}

func (c *memCache) InvalidateMethods(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods = map[string][]domain.ShippingMethod{}
	c.invalids++
	return nil
}
