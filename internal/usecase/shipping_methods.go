package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	shippingKeyAll    = "all"
	shippingKeyActive = "active"
)

type ShippingMethodInput struct {
	Name                 *string           `json:"name"`
	NameLocalized        map[string]string `json:"nameLocalized"`
	Description          *string           `json:"description"`
	DescriptionLocalized map[string]string `json:"descriptionLocalized"`
	Cost                 *decimal.Decimal  `json:"cost"`
	EstimatedDays        *int              `json:"estimatedDays"`
	Active               *bool             `json:"active"`
}

type ShippingMethods struct {
	repo  ShippingRepo
	cache ShippingCache
	now   func() time.Time
}

func NewShippingMethods(repo ShippingRepo, cache ShippingCache) *ShippingMethods {
	return &ShippingMethods{repo: repo, cache: cache, now: time.Now}
}

// List reads through the cache. Cache failures fall back to the database.
func (uc *ShippingMethods) List(ctx context.Context, activeOnly bool) ([]domain.ShippingMethod, error) {
	log := logging.FromCtx(ctx)
	key := shippingKeyAll
	if activeOnly {
		key = shippingKeyActive
	}
	if uc.cache != nil {
		methods, ok, err := uc.cache.GetMethods(ctx, key)
		if err != nil {
			log.Warn("shipping cache read failed", "key", key, "err", err)
		} else if ok {
			return methods, nil
		}
	}
	methods, err := uc.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, internal(err, "list shipping methods")
	}
	if methods == nil {
		methods = []domain.ShippingMethod{}
	}
	if uc.cache != nil {
		if err := uc.cache.SetMethods(ctx, key, methods); err != nil {
			log.Warn("shipping cache write failed", "key", key, "err", err)
		}
	}
	return methods, nil
}

func (uc *ShippingMethods) Get(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	m, err := uc.repo.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Shipping method not found")
	}
	if err != nil {
		return nil, internal(err, "get shipping method")
	}
	return m, nil
}

func (uc *ShippingMethods) Create(ctx context.Context, p Principal, in ShippingMethodInput) (*domain.ShippingMethod, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	m := &domain.ShippingMethod{
		ID:        uuid.NewString(),
		Active:    true,
		CreatedAt: uc.now().UTC(),
	}
	applyShippingInput(m, in)
	if err := validateShipping(m); err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, m); err != nil {
		return nil, internal(err, "create shipping method")
	}
	uc.invalidate(ctx)
	logging.FromCtx(ctx).Info("shipping method created", "shipping_method_id", m.ID, "cost", m.Cost.String())
	return m, nil
}

// Update applies the non-nil fields of in.
func (uc *ShippingMethods) Update(ctx context.Context, p Principal, id string, in ShippingMethodInput) (*domain.ShippingMethod, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	m, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyShippingInput(m, in)
	if err := validateShipping(m); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, m); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, newErr(ErrNotFound, "Shipping method not found")
		}
		return nil, internal(err, "update shipping method")
	}
	uc.invalidate(ctx)
	return m, nil
}

func (uc *ShippingMethods) invalidate(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.InvalidateMethods(ctx); err != nil {
		logging.FromCtx(ctx).Warn("shipping cache invalidate failed", "err", err)
	}
}

func applyShippingInput(m *domain.ShippingMethod, in ShippingMethodInput) {
	if in.Name != nil {
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.NameLocalized != nil {
		m.NameLocalized = in.NameLocalized
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.DescriptionLocalized != nil {
		m.DescriptionLocalized = in.DescriptionLocalized
	}
	if in.Cost != nil {
		m.Cost = in.Cost.Round(2)
	}
	if in.EstimatedDays != nil {
		m.EstimatedDays = *in.EstimatedDays
	}
	if in.Active != nil {
		m.Active = *in.Active
	}
}

func validateShipping(m *domain.ShippingMethod) error {
	if m.Name == "" {
		return newErr(ErrBadRequest, "Shipping method name is required")
	}
	if m.Cost.IsNegative() {
		return newErr(ErrBadRequest, "Shipping cost must not be negative")
	}
	if m.EstimatedDays < 0 {
		return newErr(ErrBadRequest, "Estimated days must not be negative")
	}
	return nil
}

func requireAdmin(p Principal) error {
	if !p.Authenticated() {
		return newErr(ErrUnauthorized, "Unauthorized")
	}
	if !p.IsAdmin() {
		return newErr(ErrForbidden, "Administrator access required")
	}
	return nil
}
