package checkout

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrLineNotFound      = errors.New("cart line not found")
)

// Line is one cart entry. Product is the snapshot taken when it was added.
type Line struct {
	Product  domain.Product
	Size     string
	Color    string
	Quantity int
}

// UnitPrice is the discounted price rounded to cents, the same figure the
// server stores per order item.
func (l Line) UnitPrice() decimal.Decimal { return l.Product.EffectivePrice() }

// Total is UnitPrice times quantity. Rounding per unit rather than per line
// keeps the cart total equal to the order subtotal the server computes.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) variantID() string {
	if v, ok := l.Product.FindVariant("", l.Size, l.Color); ok {
		return v.ID
	}
	return ""
}

// Cart is the shopper's client-held cart. Safe for concurrent use.
type Cart struct {
	mu       sync.Mutex
	lines    []Line
	shipping *domain.ShippingMethod
}

func NewCart() *Cart { return &Cart{} }

func sameLine(l Line, productID, size, color string) bool {
	return l.Product.ID == productID &&
		strings.EqualFold(l.Size, size) &&
		strings.EqualFold(l.Color, color)
}

// AddItem merges into an existing (product, size, color) line. The merged
// quantity may not exceed the snapshot's stock for that variant.
func (c *Cart) AddItem(p domain.Product, size, color string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stock := p.StockFor("", size, color)
	for i := range c.lines {
		if !sameLine(c.lines[i], p.ID, size, color) {
			continue
		}
		merged := c.lines[i].Quantity + qty
		if merged > stock {
			return fmt.Errorf("%w: %s has %d available, cart would hold %d", ErrInsufficientStock, p.Name, stock, merged)
		}
		c.lines[i].Quantity = merged
		c.lines[i].Product = p
		return nil
	}
	if qty > stock {
		return fmt.Errorf("%w: %s has %d available, requested %d", ErrInsufficientStock, p.Name, stock, qty)
	}
	c.lines = append(c.lines, Line{Product: p, Size: size, Color: color, Quantity: qty})
	return nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(productID, size, color string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		l := &c.lines[i]
		if !sameLine(*l, productID, size, color) {
			continue
		}
		if qty <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
		if stock := l.Product.StockFor("", size, color); qty > stock {
			return fmt.Errorf("%w: %s has %d available, requested %d", ErrInsufficientStock, l.Product.Name, stock, qty)
		}
		l.Quantity = qty
		return nil
	}
	return ErrLineNotFound
}

func (c *Cart) RemoveItem(productID, size, color string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.lines[:0]
	for _, l := range c.lines {
		if !sameLine(l, productID, size, color) {
			out = append(out, l)
		}
	}
	c.lines = out
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.shipping = nil
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Total is the merchandise subtotal, shipping excluded.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

func (c *Cart) SelectShipping(m domain.ShippingMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shipping = &m
}

func (c *Cart) Shipping() (domain.ShippingMethod, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shipping == nil {
		return domain.ShippingMethod{}, false
	}
	return *c.shipping, true
}
