package domain

import "time"

const (
	RoutingOrderConfirmation  = "order.confirmation"
	RoutingOrderStatusChanged = "order.status_changed"
)

type OrderConfirmationEvent struct {
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	CustomerEmail string    `json:"customerEmail"`
	Total         int64     `json:"total"`
	CreatedAt     time.Time `json:"createdAt"`
}

type OrderStatusChangedEvent struct {
	OrderID   string      `json:"orderId"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedBy string      `json:"changedBy"`
	Note      string      `json:"note,omitempty"`
	ChangedAt time.Time   `json:"changedAt"`
}
