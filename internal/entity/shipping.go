package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingMethod struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	NameLocalized        map[string]string `json:"nameLocalized,omitempty"`
	Description          string            `json:"description,omitempty"`
	DescriptionLocalized map[string]string `json:"descriptionLocalized,omitempty"`
	Cost                 decimal.Decimal   `json:"cost"`
	EstimatedDays        int               `json:"estimatedDays,omitempty"`
	Active               bool              `json:"active"`
	CreatedAt            time.Time         `json:"createdAt"`
}
