package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

type CatalogRepo struct{ db *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

var _ usecase.CatalogRepo = (*CatalogRepo)(nil)

const categoryColumns = `c.id, COALESCE(c.parent_id, ''), c.name, c.slug, c.created_at`

func categoryDest(c *domain.Category) []any {
	return []any{&c.ID, &c.ParentID, &c.Name, &c.Slug, &c.CreatedAt}
}

func (r *CatalogRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories c ORDER BY c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(categoryDest(&c)...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	if err := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = ?`, id).Scan(categoryDest(&c)...); err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (r *CatalogRepo) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO categories (id, parent_id, name, slug, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, nullString(c.ParentID), c.Name, c.Slug, c.CreatedAt,
	)
	return foreignKeyAs(err, usecase.ErrRecordNotFound)
}

const productColumns = `
p.id, p.category_id, p.name, p.slug, p.description, p.price, p.discount, p.quantity, p.active, p.created_at`

func productDest(p *domain.Product) []any {
	return []any{&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Discount, &p.Quantity, &p.Active, &p.CreatedAt}
}

func (r *CatalogRepo) ListProducts(ctx context.Context, f usecase.ProductFilter) ([]domain.Product, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.CategoryID != "" {
		conds = append(conds, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.ActiveOnly {
		conds = append(conds, "p.active = ?")
		args = append(args, true)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	if total == 0 {
		return []domain.Product{}, 0, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+productColumns+`
FROM products p`+where+`
ORDER BY p.created_at DESC, p.id
LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var list []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(productDest(&p)...); err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ptrs := make([]*domain.Product, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	if err := r.attachVariants(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *CatalogRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p domain.Product
		c domain.Category
	)
	dest := append(productDest(&p), categoryDest(&c)...)
	err := r.db.QueryRowContext(ctx, `
SELECT `+productColumns+`, `+categoryColumns+`
FROM products p
JOIN categories c ON c.id = p.category_id
WHERE p.id = ?`, id).Scan(dest...)
	if err != nil {
		return nil, classify(err)
	}
	p.Category = &c
	if err := r.attachVariants(ctx, []*domain.Product{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepo) attachVariants(ctx context.Context, products []*domain.Product) error {
	byID := make(map[string]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, product_id, size, color, quantity
FROM product_variants
WHERE product_id IN (`+placeholders(len(ids))+`)
ORDER BY product_id, size, color, id`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Quantity); err != nil {
			return err
		}
		if p, ok := byID[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return rows.Err()
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, p *domain.Product) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO products (id, category_id, name, slug, description, price, discount, quantity, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.Price, p.Discount, p.Quantity, p.Active, p.CreatedAt,
		)
		if err != nil {
			return foreignKeyAs(err, usecase.ErrRecordNotFound)
		}
		for _, v := range p.Variants {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO product_variants (id, product_id, size, color, quantity) VALUES (?, ?, ?, ?, ?)`,
				v.ID, p.ID, v.Size, v.Color, v.Quantity,
			); err != nil {
				return classify(err)
			}
		}
		return nil
	})
}
