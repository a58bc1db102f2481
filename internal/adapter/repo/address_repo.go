package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

type AddressRepo struct{ db *sql.DB }

func NewAddressRepo(db *sql.DB) *AddressRepo { return &AddressRepo{db: db} }

var _ usecase.AddressRepo = (*AddressRepo)(nil)

const addressColumns = `
a.id, a.user_id, a.first_name, a.last_name, a.company, a.address1, a.address2,
a.city, a.state, a.postal_code, a.country, a.phone, a.is_default, a.created_at`

func addressDest(a *domain.Address) []any {
	return []any{
		&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.Company, &a.Address1, &a.Address2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt,
	}
}

// Create demotes the current default in the same transaction when the new
// address is default. A user's first address is always made default.
// ux_addresses_user_default allows one default per user; a concurrent create
// that loses that race re-reads and tries again.
func (r *AddressRepo) Create(ctx context.Context, a *domain.Address) error {
	wantDefault := a.IsDefault
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		a.IsDefault = wantDefault
		err = withTx(ctx, r.db, func(tx *sql.Tx) error {
			return r.insert(ctx, tx, a)
		})
		if !isDefaultConflict(err) {
			return err
		}
	}
	return err
}

func (r *AddressRepo) insert(ctx context.Context, tx *sql.Tx, a *domain.Address) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM addresses WHERE user_id = ?`, a.UserID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		a.IsDefault = true
	}
	if a.IsDefault && n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE addresses SET is_default = ? WHERE user_id = ? AND is_default = ?`,
			false, a.UserID, true,
		); err != nil {
			return fmt.Errorf("demote default address: %w", err)
		}
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO addresses (id, user_id, first_name, last_name, company, address1, address2,
                       city, state, postal_code, country, phone, is_default, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.FirstName, a.LastName, a.Company, a.Address1, a.Address2,
		a.City, a.State, a.PostalCode, a.Country, a.Phone, a.IsDefault, a.CreatedAt,
	)
	return classify(err)
}

func isDefaultConflict(err error) bool {
	if !errors.Is(err, usecase.ErrDuplicateKey) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "default_marker") || strings.Contains(msg, "ux_addresses_user_default")
}

func (r *AddressRepo) Get(ctx context.Context, id string) (*domain.Address, error) {
	var a domain.Address
	err := r.db.QueryRowContext(ctx, `SELECT `+addressColumns+` FROM addresses a WHERE a.id = ?`, id).Scan(addressDest(&a)...)
	if err != nil {
		return nil, classify(err)
	}
	return &a, nil
}

// List returns the default address first, then newest first.
func (r *AddressRepo) List(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+addressColumns+`
FROM addresses a
WHERE a.user_id = ?
ORDER BY a.is_default DESC, a.created_at DESC, a.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(addressDest(&a)...); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AddressRepo) SetDefault(ctx context.Context, userID, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM addresses WHERE id = ? AND user_id = ?`, id, userID).Scan(&one)
		if err != nil {
			return classify(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE addresses SET is_default = ? WHERE user_id = ? AND is_default = ? AND id <> ?`,
			false, userID, true, id,
		); err != nil {
			return fmt.Errorf("demote default address: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE addresses SET is_default = ? WHERE id = ?`, true, id)
		return err
	})
}

// Delete removes the address. When it was the default, the newest remaining
// address is promoted. Addresses referenced by orders are kept.
func (r *AddressRepo) Delete(ctx context.Context, userID, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var wasDefault bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_default FROM addresses WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&wasDefault)
		if err != nil {
			return classify(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, id); err != nil {
			return foreignKeyAs(err, usecase.ErrInUse)
		}
		if !wasDefault {
			return nil
		}

		var next string
		err = tx.QueryRowContext(ctx, `
SELECT id FROM addresses WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`, userID).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE addresses SET is_default = ? WHERE id = ?`, true, next)
		return err
	})
}
