package usecase

import "time"

const ChannelOrderCreated = "order.created"

// Written to the outbox on order creation, relayed to RabbitMQ.
type OrderCreatedMsg struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email,omitempty"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	ItemCount   int       `json:"itemCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Sent by the fulfillment service on Kafka
type FulfillmentEventMsg struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"` // e.g. "SHIPPED"
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}
