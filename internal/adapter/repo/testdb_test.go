package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "store.db"), PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = Migrate(ctx, db, DriverSQLite, nil)
	require.NoError(t, err)
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db       *sql.DB
	catalog  *CatalogRepo
	category domain.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db, catalog: NewCatalogRepo(db)}
	f.category = domain.Category{ID: uuid.NewString(), Name: "Shoes", Slug: "shoes", CreatedAt: testNow}
	require.NoError(t, f.catalog.CreateCategory(context.Background(), &f.category))
	return f
}

func (f *fixture) product(t *testing.T, price string, qty int, variants ...domain.Variant) domain.Product {
	t.Helper()
	id := uuid.NewString()
	p := domain.Product{
		ID:         id,
		CategoryID: f.category.ID,
		Name:       "Runner " + id[:8],
		Slug:       "runner-" + id[:8],
		Price:      dec(price),
		Quantity:   qty,
		Active:     true,
		CreatedAt:  testNow,
	}
	for _, v := range variants {
		v.ID = uuid.NewString()
		v.ProductID = id
		p.Variants = append(p.Variants, v)
	}
	require.NoError(t, f.catalog.CreateProduct(context.Background(), &p))
	return p
}

func (f *fixture) address(t *testing.T, userID string) domain.Address {
	t.Helper()
	a := domain.Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Address1:   "12 St James's Square",
		City:       "London",
		PostalCode: "SW1Y 4JH",
		Country:    "GB",
		CreatedAt:  testNow,
	}
	require.NoError(t, NewAddressRepo(f.db).Create(context.Background(), &a))
	return a
}

func (f *fixture) shipping(t *testing.T, cost string, active bool) domain.ShippingMethod {
	t.Helper()
	m := domain.ShippingMethod{
		ID:            uuid.NewString(),
		Name:          "Courier",
		NameLocalized: map[string]string{"vi": "Chuyển phát"},
		Cost:          dec(cost),
		EstimatedDays: 3,
		Active:        active,
		CreatedAt:     testNow,
	}
	require.NoError(t, NewShippingRepo(f.db).Create(context.Background(), &m))
	return m
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
