package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ usecase.OrderRepo = (*OrderRepo)(nil)

// Create writes the order, its items, the stock decrements, the cart clear,
// the first history row and the outbox message in one transaction.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order, msg usecase.OutboxMessage) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO orders (id, order_number, user_id, status, currency, subtotal, tax, shipping, total,
                    shipping_address_id, shipping_method_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.OrderNumber, o.UserID, o.Status, o.Currency,
			o.Subtotal, o.Tax, o.Shipping, o.Total,
			o.ShippingAddressID, nullString(o.ShippingMethodID), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return foreignKeyAs(err, usecase.ErrRecordNotFound)
		}

		for _, it := range o.Items {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, price)
VALUES (?, ?, ?, ?, ?, ?)`,
				it.ID, o.ID, it.ProductID, it.VariantID, it.Quantity, it.Price,
			); err != nil {
				return foreignKeyAs(err, usecase.ErrRecordNotFound)
			}
			if err := adjustStock(ctx, tx, it.ProductID, it.VariantID, -it.Quantity); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, o.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := insertHistory(ctx, tx, o.ID, "", o.Status, o.UserID, o.CreatedAt); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, msg)
	})
}

// adjustStock applies delta to the variant row when variantID is set,
// otherwise to the product row. A decrement never takes stock below zero.
func adjustStock(ctx context.Context, tx *sql.Tx, productID, variantID string, delta int) error {
	var (
		res sql.Result
		err error
	)
	switch {
	case variantID != "" && delta < 0:
		res, err = tx.ExecContext(ctx, `
UPDATE product_variants SET quantity = quantity + ?
WHERE id = ? AND product_id = ? AND quantity >= ?`, delta, variantID, productID, -delta)
	case variantID != "":
		res, err = tx.ExecContext(ctx, `
UPDATE product_variants SET quantity = quantity + ? WHERE id = ? AND product_id = ?`, delta, variantID, productID)
	case delta < 0:
		res, err = tx.ExecContext(ctx, `
UPDATE products SET quantity = quantity + ? WHERE id = ? AND quantity >= ?`, delta, productID, -delta)
	default:
		res, err = tx.ExecContext(ctx, `
UPDATE products SET quantity = quantity + ? WHERE id = ?`, delta, productID)
	}
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok && delta < 0 {
		return fmt.Errorf("%w: product %s variant %q", usecase.ErrStockConflict, productID, variantID)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, orderID string, from, to domain.Status, actor string, at time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO order_status_history (id, order_id, from_status, to_status, actor, created_at)
VALUES (?, ?, ?, ?, ?, ?)`, id.String(), orderID, from, to, actor, at)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

const orderColumns = `
o.id, o.order_number, o.user_id, o.status, o.currency, o.subtotal, o.tax, o.shipping, o.total,
o.shipping_address_id, COALESCE(o.shipping_method_id, ''), o.created_at, o.updated_at`

func orderDest(o *domain.Order) []any {
	return []any{
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Currency,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&o.ShippingAddressID, &o.ShippingMethodID, &o.CreatedAt, &o.UpdatedAt,
	}
}

// GetByID loads the order with its address, shipping method, items (with
// product and category) and payments.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o  domain.Order
		a  domain.Address
		sm nullShippingMethod
	)
	dest := orderDest(&o)
	dest = append(dest, addressDest(&a)...)
	dest = append(dest, sm.dest()...)
	err := r.db.QueryRowContext(ctx, `
SELECT `+orderColumns+`,
       `+addressColumns+`,
       `+shippingColumnsNullable+`
FROM orders o
JOIN addresses a ON a.id = o.shipping_address_id
LEFT JOIN shipping_methods sm ON sm.id = o.shipping_method_id
WHERE o.id = ?`, id).Scan(dest...)
	if err != nil {
		return nil, classify(err)
	}
	o.ShippingAddress = &a
	o.ShippingMethod = sm.method()

	orders := []*domain.Order{&o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	if err := r.attachPayments(ctx, orders); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) List(ctx context.Context, f usecase.OrderFilter) ([]domain.Order, int, error) {
	where, args := "", []any{}
	if f.UserID != "" {
		where = " WHERE o.user_id = ?"
		args = append(args, f.UserID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+orderColumns+`
FROM orders o`+where+`
ORDER BY o.created_at DESC, o.order_number DESC
LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var list []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(orderDest(&o)...); err != nil {
			return nil, 0, err
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ptrs := make([]*domain.Order, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	if err := r.attachItems(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	if err := r.attachPayments(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *OrderRepo) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT i.id, i.order_id, i.product_id, i.variant_id, i.quantity, i.price,
       p.id, p.category_id, p.name, p.slug, p.description, p.price, p.discount, p.quantity, p.active, p.created_at,
       c.id, COALESCE(c.parent_id, ''), c.name, c.slug, c.created_at
FROM order_items i
JOIN products p ON p.id = i.product_id
JOIN categories c ON c.id = p.category_id
WHERE i.order_id IN (`+placeholders(len(ids))+`)
ORDER BY i.order_id, i.id`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it domain.OrderItem
			p  domain.Product
			c  domain.Category
		)
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity, &it.Price,
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Discount, &p.Quantity, &p.Active, &p.CreatedAt,
			&c.ID, &c.ParentID, &c.Name, &c.Slug, &c.CreatedAt,
		); err != nil {
			return err
		}
		p.Category = &c
		it.Product = &p
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (r *OrderRepo) attachPayments(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		o.Payments = []domain.Payment{}
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE order_id IN (`+placeholders(len(ids))+`)
ORDER BY created_at, id`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(paymentDest(&p)...); err != nil {
			return err
		}
		if o, ok := byID[p.OrderID]; ok {
			o.Payments = append(o.Payments, p)
		}
	}
	return rows.Err()
}

// UpdateStatusIf moves the order from -> to only when the row is still in
// from. Cancelling returns the items to stock in the same transaction.
func (r *OrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.Status, actor string) (bool, error) {
	var ok bool
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.now()
		res, err := tx.ExecContext(ctx, `
UPDATE orders
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?`,
			to, now, id, from,
		)
		if err != nil {
			return err
		}
		// rows == 0: not found or status moved underneath us
		if ok, err = affected(res); err != nil || !ok {
			return err
		}

		if to == domain.StatusCancelled {
			if err := restock(ctx, tx, id); err != nil {
				return err
			}
		}
		return insertHistory(ctx, tx, id, from, to, actor, now)
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func restock(ctx context.Context, tx *sql.Tx, orderID string) error {
	rows, err := tx.QueryContext(ctx, `
SELECT product_id, variant_id, quantity FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("load items for restock: %w", err)
	}
	type line struct {
		productID, variantID string
		qty                  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.variantID, &l.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, l := range lines {
		if err := adjustStock(ctx, tx, l.productID, l.variantID, l.qty); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT order_id, from_status, to_status, actor, created_at
FROM order_status_history
WHERE order_id = ?
ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.Actor, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const paymentColumns = `id, order_id, amount, status, payment_method, transaction_id, created_at`

func paymentDest(p *domain.Payment) []any {
	return []any{&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.PaymentMethod, &p.TransactionID, &p.CreatedAt}
}

func (r *OrderRepo) AddPayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.Amount, p.Status, p.PaymentMethod, p.TransactionID, p.CreatedAt,
	)
	return foreignKeyAs(err, usecase.ErrRecordNotFound)
}

func (r *OrderRepo) GetPayment(ctx context.Context, orderID, paymentID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.QueryRowContext(ctx, `
SELECT `+paymentColumns+` FROM payments WHERE id = ? AND order_id = ?`, paymentID, orderID).Scan(paymentDest(&p)...)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (r *OrderRepo) UpdatePaymentStatusIf(ctx context.Context, orderID, paymentID string, from, to domain.PaymentStatus, txnID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE payments
SET status = ?, transaction_id = CASE WHEN ? = '' THEN transaction_id ELSE ? END
WHERE id = ? AND order_id = ? AND status = ?`,
		to, txnID, txnID, paymentID, orderID, from,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// nullShippingMethod receives the LEFT JOINed shipping method columns.
type nullShippingMethod struct {
	id, name, nameLoc, desc, descLoc sql.NullString
	cost                             decimal.NullDecimal
	days                             sql.NullInt64
	active                           sql.NullBool
	createdAt                        sql.NullTime
}

const shippingColumnsNullable = `
sm.id, sm.name, sm.name_localized, sm.description, sm.description_localized,
sm.cost, sm.estimated_days, sm.active, sm.created_at`

func (n *nullShippingMethod) dest() []any {
	return []any{&n.id, &n.name, &n.nameLoc, &n.desc, &n.descLoc, &n.cost, &n.days, &n.active, &n.createdAt}
}

func (n *nullShippingMethod) method() *domain.ShippingMethod {
	if !n.id.Valid {
		return nil
	}
	return &domain.ShippingMethod{
		ID:                   n.id.String,
		Name:                 n.name.String,
		NameLocalized:        decodeLocalized(n.nameLoc.String),
		Description:          n.desc.String,
		DescriptionLocalized: decodeLocalized(n.descLoc.String),
		Cost:                 n.cost.Decimal,
		EstimatedDays:        int(n.days.Int64),
		Active:               n.active.Bool,
		CreatedAt:            n.createdAt.Time,
	}
}
