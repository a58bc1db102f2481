package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

type CartRepo struct{ db *sql.DB }

func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

var _ usecase.CartRepo = (*CartRepo)(nil)

func (r *CartRepo) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.user_id, c.product_id, c.variant_id, c.quantity, c.created_at,
       p.id, p.category_id, p.name, p.slug, p.description, p.price, p.discount, p.quantity, p.active, p.created_at
FROM cart_items c
JOIN products p ON p.id = c.product_id
WHERE c.user_id = ?
ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	var out []domain.CartItem
	for rows.Next() {
		var (
			it domain.CartItem
			p  domain.Product
		)
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.ProductID, &it.VariantID, &it.Quantity, &it.CreatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Discount, &p.Quantity, &p.Active, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		it.Product = &p
		out = append(out, it)
	}
	return out, rows.Err()
}

// Add merges into the existing line for the same product and variant; the
// merged row's id and quantity are written back to item.
func (r *CartRepo) Add(ctx context.Context, item *domain.CartItem) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			id  string
			qty int
		)
		err := tx.QueryRowContext(ctx, `
SELECT id, quantity FROM cart_items
WHERE user_id = ? AND product_id = ? AND variant_id = ?`,
			item.UserID, item.ProductID, item.VariantID,
		).Scan(&id, &qty)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
INSERT INTO cart_items (id, user_id, product_id, variant_id, quantity, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
				item.ID, item.UserID, item.ProductID, item.VariantID, item.Quantity, item.CreatedAt,
			)
			return foreignKeyAs(err, usecase.ErrRecordNotFound)
		case err != nil:
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = quantity + ? WHERE id = ?`, item.Quantity, id,
		); err != nil {
			return err
		}
		item.ID = id
		item.Quantity += qty
		return nil
	})
}

func (r *CartRepo) Get(ctx context.Context, userID, id string) (*domain.CartItem, error) {
	var it domain.CartItem
	err := r.db.QueryRowContext(ctx, `
SELECT id, user_id, product_id, variant_id, quantity, created_at
FROM cart_items WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&it.ID, &it.UserID, &it.ProductID, &it.VariantID, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &it, nil
}

func (r *CartRepo) UpdateQuantity(ctx context.Context, userID, id string, qty int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?`, qty, id, userID)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		if _, err := r.Get(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *CartRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return usecase.ErrRecordNotFound
	}
	return nil
}

func (r *CartRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}
