package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

type ShippingRepo struct{ db *sql.DB }

func NewShippingRepo(db *sql.DB) *ShippingRepo { return &ShippingRepo{db: db} }

var _ usecase.ShippingRepo = (*ShippingRepo)(nil)

const shippingColumns = `
id, name, name_localized, description, description_localized, cost, estimated_days, active, created_at`

func scanShipping(sc interface{ Scan(...any) error }) (domain.ShippingMethod, error) {
	var (
		m                domain.ShippingMethod
		nameLoc, descLoc string
	)
	err := sc.Scan(&m.ID, &m.Name, &nameLoc, &m.Description, &descLoc, &m.Cost, &m.EstimatedDays, &m.Active, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.NameLocalized = decodeLocalized(nameLoc)
	m.DescriptionLocalized = decodeLocalized(descLoc)
	return m, nil
}

// List orders by cost so the cheapest method is the checkout default.
func (r *ShippingRepo) List(ctx context.Context, activeOnly bool) ([]domain.ShippingMethod, error) {
	q := `SELECT ` + shippingColumns + ` FROM shipping_methods`
	var args []any
	if activeOnly {
		q += ` WHERE active = ?`
		args = append(args, true)
	}
	q += ` ORDER BY cost, name, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shipping methods: %w", err)
	}
	defer rows.Close()

	var out []domain.ShippingMethod
	for rows.Next() {
		m, err := scanShipping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ShippingRepo) Get(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	m, err := scanShipping(r.db.QueryRowContext(ctx, `SELECT `+shippingColumns+` FROM shipping_methods WHERE id = ?`, id))
	if err != nil {
		return nil, classify(err)
	}
	return &m, nil
}

func (r *ShippingRepo) Create(ctx context.Context, m *domain.ShippingMethod) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO shipping_methods (`+shippingColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, encodeLocalized(m.NameLocalized), m.Description, encodeLocalized(m.DescriptionLocalized),
		m.Cost, m.EstimatedDays, m.Active, m.CreatedAt,
	)
	return classify(err)
}

func (r *ShippingRepo) Update(ctx context.Context, m *domain.ShippingMethod) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE shipping_methods
SET name = ?, name_localized = ?, description = ?, description_localized = ?,
    cost = ?, estimated_days = ?, active = ?
WHERE id = ?`,
		m.Name, encodeLocalized(m.NameLocalized), m.Description, encodeLocalized(m.DescriptionLocalized),
		m.Cost, m.EstimatedDays, m.Active, m.ID,
	)
	if err != nil {
		return classify(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		// MySQL reports 0 for an unchanged row, so confirm it exists.
		if _, err := r.Get(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func encodeLocalized(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeLocalized(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
