package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HydratedOrderItem is an order item joined with the product row that was
// current when the item was processed.
type HydratedOrderItem struct {
	OrderID   ID        `json:"orderId"`
	CreatedAt Timestamp `json:"createdAt"`
	Product   Product   `json:"product"`
	OrderItem OrderItem `json:"orderItem"`
}

// EnrichedOrder says that an order was in a status at a time. CreatedAt is
// the status update time, not the order creation time.
type EnrichedOrder struct {
	ID        ID              `json:"id"`
	UserID    ID              `json:"userId"`
	Items     []OrderItem     `json:"items"`
	Price     decimal.Decimal `json:"price"`
	Status    Status          `json:"status"`
	CreatedAt Timestamp       `json:"createdAt"`
}

func NewEnrichedOrder(order Order, status OrderStatus) EnrichedOrder {
	return EnrichedOrder{
		ID:        order.ID,
		UserID:    order.UserID,
		Items:     order.Items,
		Price:     order.Price,
		Status:    status.Status,
		CreatedAt: status.UpdatedAt,
	}
}

// WindowedMetric holds the running totals of one window instance.
type WindowedMetric struct {
	WindowStart time.Time       `json:"windowStart"`
	WindowEnd   time.Time       `json:"windowEnd"`
	Count       int64           `json:"count"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type TimePeriod struct {
	Orders     int64           `json:"orders"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type OrdersSummary struct {
	CurrentTimePeriod  TimePeriod `json:"currentTimePeriod"`
	PreviousTimePeriod TimePeriod `json:"previousTimePeriod"`
}
