package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodCash   PaymentMethod = "cash"
	MethodOnline PaymentMethod = "online"
)

func (m PaymentMethod) IsValid() bool {
	return m == MethodCard || m == MethodCash || m == MethodOnline
}

// InitialStatus: card and online are settled at checkout, cash on delivery is not.
func (m PaymentMethod) InitialStatus() PaymentStatus {
	if m == MethodCash {
		return PaymentPending
	}
	return PaymentCompleted
}

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	TransactionID string          `json:"transactionId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CartItem is a server-side cart row.
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	VariantID string    `json:"variantId,omitempty"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
