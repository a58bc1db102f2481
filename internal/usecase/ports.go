package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
)

// Storage sentinels. Repositories wrap driver errors with these.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrStockConflict  = errors.New("insufficient stock")
	ErrInUse          = errors.New("record is referenced")
)

// Role names carried by a Principal.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

func (p Principal) Authenticated() bool { return p.UserID != "" }
func (p Principal) IsAdmin() bool       { return p.Role == RoleAdmin }

// CanManageOrders is true for administrators and internal system actors.
func (p Principal) CanManageOrders() bool { return p.Role == RoleAdmin || p.Role == RoleSystem }

// OutboxMessage is a durable event written in the same transaction as the
// state change it announces.
type OutboxMessage struct {
	ID            string
	Channel       string
	Payload       []byte
	Status        string
	RetryCount    int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

type OrderFilter struct {
	UserID string // empty = all users
	Limit  int
	Offset int
}

type ProductFilter struct {
	CategoryID string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type OrderRepo interface {
	// Create persists the order, its items, decrements stock, clears the
	// owner's cart and writes the outbox message in one transaction.
	Create(ctx context.Context, o *domain.Order, msg OutboxMessage) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error)
	// UpdateStatusIf moves from -> to only if the row is still in from.
	// Moving to CANCELLED restocks the order's items in the same transaction.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.Status, actor string) (bool, error)
	History(ctx context.Context, id string) ([]domain.StatusChange, error)
	AddPayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, orderID, paymentID string) (*domain.Payment, error)
	// UpdatePaymentStatusIf sets the transaction id too when txnID is not empty.
	UpdatePaymentStatusIf(ctx context.Context, orderID, paymentID string, from, to domain.PaymentStatus, txnID string) (bool, error)
}

type CartRepo interface {
	List(ctx context.Context, userID string) ([]domain.CartItem, error)
	// Add merges into an existing row with the same product+variant.
	Add(ctx context.Context, item *domain.CartItem) error
	Get(ctx context.Context, userID, id string) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, id string, qty int) error
	Delete(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) error
}

type AddressRepo interface {
	// Create demotes any existing default in the same transaction when
	// a.IsDefault is set; a user's first address is always default.
	Create(ctx context.Context, a *domain.Address) error
	Get(ctx context.Context, id string) (*domain.Address, error)
	List(ctx context.Context, userID string) ([]domain.Address, error)
	SetDefault(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
}

type ShippingRepo interface {
	List(ctx context.Context, activeOnly bool) ([]domain.ShippingMethod, error)
	Get(ctx context.Context, id string) (*domain.ShippingMethod, error)
	Create(ctx context.Context, m *domain.ShippingMethod) error
	Update(ctx context.Context, m *domain.ShippingMethod) error
}

type CatalogRepo interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
}

type OutboxRepo interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, next time.Time, failed bool) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// OrderStatus is the cached view behind the status endpoint. UserID lets a
// cache hit be authorised without loading the order.
type OrderStatus struct {
	OrderID   string        `json:"orderId"`
	UserID    string        `json:"-"`
	Status    domain.Status `json:"status"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type OrderCache interface {
	SetStatus(ctx context.Context, s OrderStatus) error
	GetStatus(ctx context.Context, orderID string) (OrderStatus, bool, error)
}

type ShippingCache interface {
	GetMethods(ctx context.Context, key string) ([]domain.ShippingMethod, bool, error)
	SetMethods(ctx context.Context, key string, methods []domain.ShippingMethod) error
	InvalidateMethods(ctx context.Context) error
}

// Recorder receives business events for metrics.
type Recorder interface {
	OrderCreated(total float64)
	StatusChanged(kind, from, to string)
	PaymentCreated(method string)
}

type nopRecorder struct{}

func (nopRecorder) OrderCreated(float64)                 {}
func (nopRecorder) StatusChanged(string, string, string) {}
func (nopRecorder) PaymentCreated(string)                {}
