package usecase

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type OrderQuery struct {
	repo  OrderRepo
	cache OrderCache
}

// NewOrderQuery takes an optional status cache.
func NewOrderQuery(repo OrderRepo, cache OrderCache) *OrderQuery {
	return &OrderQuery{repo: repo, cache: cache}
}

// Get returns the order if the caller owns it or is an administrator.
func (q *OrderQuery) Get(ctx context.Context, p Principal, id string) (*domain.Order, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	o, err := q.repo.GetByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, internal(err, "get order")
	}
	if !o.OwnedBy(p.UserID) && !p.IsAdmin() {
		logging.FromCtx(ctx).Warn("order read denied", "order_id", id, "user_id", p.UserID, "owner_id", o.UserID)
		return nil, newErr(ErrForbidden, "You are not authorized to view this order")
	}
	return o, nil
}

// Status serves the order's current status from the cache when it can,
// and loads the order (refilling the cache) when it cannot.
func (q *OrderQuery) Status(ctx context.Context, p Principal, id string) (*OrderStatus, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	if q.cache != nil {
		s, ok, err := q.cache.GetStatus(ctx, id)
		if err != nil {
			logging.FromCtx(ctx).Warn("order status cache read failed", "order_id", id, "err", err)
		}
		if ok {
			if s.UserID != p.UserID && !p.IsAdmin() {
				return nil, newErr(ErrForbidden, "You are not authorized to view this order")
			}
			return &s, nil
		}
	}
	o, err := q.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	cacheStatus(ctx, q.cache, o)
	s := statusView(o)
	return &s, nil
}

func statusView(o *domain.Order) OrderStatus {
	return OrderStatus{OrderID: o.ID, UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt}
}

// cacheStatus is best effort: write errors are logged and dropped.
func cacheStatus(ctx context.Context, c OrderCache, o *domain.Order) {
	if c == nil {
		return
	}
	if err := c.SetStatus(ctx, statusView(o)); err != nil {
		logging.FromCtx(ctx).Warn("order status cache write failed", "order_id", o.ID, "err", err)
	}
}

type ListOrdersInput struct {
	Page   int
	Limit  int
	UserID string // admin-only filter
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type OrderPage struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// List scopes non-admin callers to their own orders; admins may filter by user.
func (q *OrderQuery) List(ctx context.Context, p Principal, in ListOrdersInput) (*OrderPage, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	page, limit := NormalizePage(in.Page, in.Limit)

	userID := p.UserID
	if p.IsAdmin() {
		userID = in.UserID
	}
	orders, total, err := q.repo.List(ctx, OrderFilter{
		UserID: userID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, internal(err, "list orders")
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &OrderPage{
		Orders: orders,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// History returns the status audit trail. Administrators only.
func (q *OrderQuery) History(ctx context.Context, p Principal, id string) ([]domain.StatusChange, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	if !p.CanManageOrders() {
		return nil, newErr(ErrForbidden, "Administrator access required")
	}
	if _, err := q.repo.GetByID(ctx, id); errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Order not found")
	} else if err != nil {
		return nil, internal(err, "get order")
	}
	h, err := q.repo.History(ctx, id)
	if err != nil {
		return nil, internal(err, "order history")
	}
	if h == nil {
		h = []domain.StatusChange{}
	}
	return h, nil
}

// NormalizePage clamps page to >= 1 and limit to 1..100 (default 10).
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
