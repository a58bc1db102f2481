package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CategoryInput struct {
	ParentID string `json:"parentId"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}

type VariantInput struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
}

type ProductInput struct {
	CategoryID  string          `json:"categoryId"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Quantity    int             `json:"quantity"`
	Active      *bool           `json:"active"`
	Variants    []VariantInput  `json:"variants"`
}

type ProductPage struct {
	Products   []domain.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

type Catalog struct {
	repo CatalogRepo
	now  func() time.Time
}

func NewCatalog(repo CatalogRepo) *Catalog {
	return &Catalog{repo: repo, now: time.Now}
}

func (uc *Catalog) Categories(ctx context.Context, tree bool) ([]*domain.Category, error) {
	flat, err := uc.repo.ListCategories(ctx)
	if err != nil {
		return nil, internal(err, "list categories")
	}
	if tree {
		return domain.CategoryTree(flat), nil
	}
	out := make([]*domain.Category, len(flat))
	for i := range flat {
		out[i] = &flat[i]
	}
	return out, nil
}

func (uc *Catalog) CreateCategory(ctx context.Context, p Principal, in CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newErr(ErrBadRequest, "Category name is required")
	}
	if in.ParentID != "" {
		if _, err := uc.repo.GetCategory(ctx, in.ParentID); errors.Is(err, ErrRecordNotFound) {
			return nil, newErr(ErrBadRequest, "Parent category %s not found", in.ParentID)
		} else if err != nil {
			return nil, internal(err, "get category")
		}
	}
	c := &domain.Category{
		ID:        uuid.NewString(),
		ParentID:  in.ParentID,
		Name:      name,
		Slug:      slugOr(in.Slug, name),
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, wrapErr(ErrConflict, err, "Category slug %q already exists", c.Slug)
		}
		return nil, internal(err, "create category")
	}
	return c, nil
}

func (uc *Catalog) Products(ctx context.Context, categoryID string, page, limit int) (*ProductPage, error) {
	page, limit = NormalizePage(page, limit)
	list, total, err := uc.repo.ListProducts(ctx, ProductFilter{
		CategoryID: categoryID,
		ActiveOnly: true,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, internal(err, "list products")
	}
	if list == nil {
		list = []domain.Product{}
	}
	return &ProductPage{
		Products: list,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

func (uc *Catalog) Product(ctx context.Context, id string) (*domain.Product, error) {
	prod, err := uc.repo.GetProduct(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrNotFound, "Product not found")
	}
	if err != nil {
		return nil, internal(err, "get product")
	}
	return prod, nil
}

func (uc *Catalog) CreateProduct(ctx context.Context, p Principal, in ProductInput) (*domain.Product, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, newErr(ErrBadRequest, "Product name is required")
	case in.CategoryID == "":
		return nil, newErr(ErrBadRequest, "Category is required")
	case !in.Price.IsPositive():
		return nil, newErr(ErrBadRequest, "Price must be a positive number")
	case in.Discount.IsNegative() || in.Discount.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return nil, newErr(ErrBadRequest, "Discount must be between 0 and 100")
	case in.Quantity < 0:
		return nil, newErr(ErrBadRequest, "Quantity must not be negative")
	}
	if _, err := uc.repo.GetCategory(ctx, in.CategoryID); errors.Is(err, ErrRecordNotFound) {
		return nil, newErr(ErrBadRequest, "Category %s not found", in.CategoryID)
	} else if err != nil {
		return nil, internal(err, "get category")
	}

	prod := &domain.Product{
		ID:          uuid.NewString(),
		CategoryID:  in.CategoryID,
		Name:        name,
		Slug:        slugOr(in.Slug, name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price.Round(2),
		Discount:    in.Discount,
		Quantity:    in.Quantity,
		Active:      in.Active == nil || *in.Active,
		CreatedAt:   uc.now().UTC(),
	}
	for i, v := range in.Variants {
		if v.Quantity < 0 {
			return nil, newErr(ErrBadRequest, "Variant %d: quantity must not be negative", i+1)
		}
		prod.Variants = append(prod.Variants, domain.Variant{
			ID:        uuid.NewString(),
			ProductID: prod.ID,
			Size:      strings.TrimSpace(v.Size),
			Color:     strings.TrimSpace(v.Color),
			Quantity:  v.Quantity,
		})
	}
	if err := uc.repo.CreateProduct(ctx, prod); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, wrapErr(ErrConflict, err, "Product slug %q already exists", prod.Slug)
		}
		return nil, internal(err, "create product")
	}
	return prod, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters to "-".
func Slugify(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func slugOr(slug, name string) string {
	if s := Slugify(slug); s != "" {
		return s
	}
	return Slugify(name)
}
