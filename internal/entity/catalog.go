package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string      `json:"id"`
	ParentID  string      `json:"parentId,omitempty"`
	Name      string      `json:"name"`
	Slug      string      `json:"slug"`
	Children  []*Category `json:"children,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CategoryTree nests a flat category list under its parents. Categories whose
// parent is unknown are treated as roots.
func CategoryTree(flat []Category) []*Category {
	byID := make(map[string]*Category, len(flat))
	for i := range flat {
		c := flat[i]
		c.Children = nil
		byID[c.ID] = &c
	}
	var roots []*Category
	for i := range flat {
		c := byID[flat[i].ID]
		if p, ok := byID[c.ParentID]; ok && c.ParentID != c.ID {
			p.Children = append(p.Children, c)
			continue
		}
		roots = append(roots, c)
	}
	return roots
}

type Product struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"categoryId"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"` // percent, 0..100
	Quantity    int             `json:"quantity"`
	Active      bool            `json:"active"`
	Variants    []Variant       `json:"variants,omitempty"`
	Category    *Category       `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Variant is a size/color instance of a product with its own stock.
type Variant struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

var hundred = decimal.NewFromInt(100)

// EffectivePrice applies the percentage discount, rounded to cents.
func EffectivePrice(price, discount decimal.Decimal) decimal.Decimal {
	if !discount.IsPositive() {
		return price.Round(2)
	}
	factor := hundred.Sub(discount).Div(hundred)
	return price.Mul(factor).Round(2)
}

func (p *Product) EffectivePrice() decimal.Decimal {
	return EffectivePrice(p.Price, p.Discount)
}

// FindVariant matches by id first, then by size+color (case-insensitive).
func (p *Product) FindVariant(variantID, size, color string) (Variant, bool) {
	for _, v := range p.Variants {
		if variantID != "" && v.ID == variantID {
			return v, true
		}
	}
	if variantID != "" || (size == "" && color == "") {
		return Variant{}, false
	}
	for _, v := range p.Variants {
		if strings.EqualFold(v.Size, size) && strings.EqualFold(v.Color, color) {
			return v, true
		}
	}
	return Variant{}, false
}

// StockFor returns the tracked stock for the product/variant combination.
func (p *Product) StockFor(variantID, size, color string) int {
	if v, ok := p.FindVariant(variantID, size, color); ok {
		return v.Quantity
	}
	return p.Quantity
}
