package domain

import "time"

// OrderStatus enumerates fulfillment states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order tracks a purchase a ticket can reference.
type Order struct {
	ID          string
	UserID      string
	OrderNumber string
	TotalPrice  string
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
