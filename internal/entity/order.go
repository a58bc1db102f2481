package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

func init() {
	// Totals are rendered as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Order struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	UserID            string          `json:"userId"`
	Status            Status          `json:"status"`
	Currency          string          `json:"currency"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Shipping          decimal.Decimal `json:"shipping"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddressID string          `json:"shippingAddressId"`
	ShippingMethodID  string          `json:"shippingMethodId,omitempty"`
	Items             []OrderItem     `json:"items"`
	Payments          []Payment       `json:"payments"`
	ShippingAddress   *Address        `json:"shippingAddress,omitempty"`
	ShippingMethod    *ShippingMethod `json:"shippingMethod,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// OrderItem is immutable once written; Price is captured at order time.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *Product        `json:"product,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal sums price*quantity over items.
func Subtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// ApplyTotals sets subtotal from items, tax from rate and the given shipping
// cost, and total = subtotal + tax + shipping.
func (o *Order) ApplyTotals(taxRate, shipping decimal.Decimal) {
	o.Subtotal = Subtotal(o.Items).Round(2)
	o.Tax = o.Subtotal.Mul(taxRate).Round(2)
	o.Shipping = shipping.Round(2)
	o.Total = o.Subtotal.Add(o.Tax).Add(o.Shipping)
}

func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	if !o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)) {
		return ErrInvalidAmount
	}
	if !o.Total.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

var ErrNoItems = errors.New("order has no items")

// StatusChange is one row of an order's status history.
type StatusChange struct {
	OrderID   string    `json:"orderId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}
