package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/google/uuid"
)

type AddCartItemInput struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// Cart is the durable per-user cart an order is built from when the
// create-order request carries no items.
type Cart struct {
	carts   CartRepo
	catalog CatalogRepo
	now     func() time.Time
}

func NewCart(carts CartRepo, catalog CatalogRepo) *Cart {
	return &Cart{carts: carts, catalog: catalog, now: time.Now}
}

func (uc *Cart) List(ctx context.Context, p Principal) ([]domain.CartItem, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	items, err := uc.carts.List(ctx, p.UserID)
	if err != nil {
		return nil, internal(err, "list cart")
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	return items, nil
}

func (uc *Cart) Add(ctx context.Context, p Principal, in AddCartItemInput) (*domain.CartItem, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	if in.Quantity < 1 {
		return nil, newErr(ErrBadRequest, "Quantity must be a positive integer")
	}
	prod, err := uc.product(ctx, in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}

	existing := 0
	items, err := uc.carts.List(ctx, p.UserID)
	if err != nil {
		return nil, internal(err, "list cart")
	}
	for _, it := range items {
		if it.ProductID == in.ProductID && it.VariantID == in.VariantID {
			existing = it.Quantity
		}
	}
	if stock := prod.StockFor(in.VariantID, "", ""); existing+in.Quantity > stock {
		return nil, newErr(ErrConflict, "InsufficientStock: only %d available", stock)
	}

	item := &domain.CartItem{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		ProductID: in.ProductID,
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.carts.Add(ctx, item); err != nil {
		return nil, internal(err, "add cart item")
	}
	item.Product = prod
	return item, nil
}

// UpdateQuantity removes the line when qty <= 0.
func (uc *Cart) UpdateQuantity(ctx context.Context, p Principal, id string, qty int) error {
	if !p.Authenticated() {
		return newErr(ErrUnauthorized, "Unauthorized")
	}
	item, err := uc.carts.Get(ctx, p.UserID, id)
	if errors.Is(err, ErrRecordNotFound) {
		return newErr(ErrNotFound, "Cart item not found")
	}
	if err != nil {
		return internal(err, "get cart item")
	}
	if qty <= 0 {
		return uc.Remove(ctx, p, id)
	}
	prod, err := uc.product(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return err
	}
	if stock := prod.StockFor(item.VariantID, "", ""); qty > stock {
		return newErr(ErrConflict, "InsufficientStock: only %d available", stock)
	}
	if err := uc.carts.UpdateQuantity(ctx, p.UserID, id, qty); err != nil {
		return internal(err, "update cart item")
	}
	return nil
}

func (uc *Cart) Remove(ctx context.Context, p Principal, id string) error {
	if !p.Authenticated() {
		return newErr(ErrUnauthorized, "Unauthorized")
	}
	err := uc.carts.Delete(ctx, p.UserID, id)
	if errors.Is(err, ErrRecordNotFound) {
		return newErr(ErrNotFound, "Cart item not found")
	}
	if err != nil {
		return internal(err, "delete cart item")
	}
	return nil
}

func (uc *Cart) Clear(ctx context.Context, p Principal) error {
	if !p.Authenticated() {
		return newErr(ErrUnauthorized, "Unauthorized")
	}
	if err := uc.carts.Clear(ctx, p.UserID); err != nil {
		return internal(err, "clear cart")
	}
	return nil
}

func (uc *Cart) product(ctx context.Context, productID, variantID string) (*domain.Product, error) {
	if productID == "" {
		return nil, newErr(ErrBadRequest, "productId is required")
	}
	prod, err := uc.catalog.GetProduct(ctx, productID)
	if errors.Is(err, ErrRecordNotFound) || (err == nil && !prod.Active) {
		return nil, newErr(ErrNotFound, "Product not found")
	}
	if err != nil {
		return nil, internal(err, "get product")
	}
	if variantID != "" {
		if _, ok := prod.FindVariant(variantID, "", ""); !ok {
			return nil, newErr(ErrBadRequest, "Variant %s not found for product %s", variantID, productID)
		}
	}
	return prod, nil
}
