package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOrder_ApplyTotals(t *testing.T) {
	o := &Order{Items: []OrderItem{{ProductID: "p1", Quantity: 2, Price: dec("1000")}}}
	o.ApplyTotals(decimal.Zero, dec("200"))

	assert.True(t, o.Subtotal.Equal(dec("2000")), o.Subtotal.String())
	assert.True(t, o.Shipping.Equal(dec("200")))
	assert.True(t, o.Tax.IsZero())
	assert.True(t, o.Total.Equal(dec("2200")), o.Total.String())
	require.NoError(t, o.Validate())
}

func TestOrder_ApplyTotals_TaxRate(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Quantity: 3, Price: dec("9.99")},
		{Quantity: 1, Price: dec("0.05")},
	}}
	o.ApplyTotals(dec("0.2"), dec("4.50"))

	assert.Equal(t, "30.02", o.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", o.Tax.StringFixed(2))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)))
}

func TestOrder_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Order{}).Validate(), ErrNoItems)

	o := &Order{
		Items:    []OrderItem{{Quantity: 1, Price: dec("10")}},
		Subtotal: dec("10"),
		Total:    dec("11"),
	}
	assert.ErrorIs(t, o.Validate(), ErrInvalidAmount)
}

func TestOrder_OwnedBy(t *testing.T) {
	o := &Order{UserID: "u1"}
	assert.True(t, o.OwnedBy("u1"))
	assert.False(t, o.OwnedBy("u2"))
	assert.False(t, (&Order{}).OwnedBy(""))
}
