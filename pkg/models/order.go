package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers on every topic.
	decimal.MarshalJSONWithoutQuotes = true
}

// Order is a placed order as emitted by the upstream producer. Immutable.
type Order struct {
	ID          ID              `json:"id"`
	CreatedAt   Timestamp       `json:"createdAt"`
	UserID      ID              `json:"userId"`
	Price       decimal.Decimal `json:"price"`
	Items       []OrderItem     `json:"items"`
	DeliveryLat float64         `json:"deliveryLat,omitempty"`
	DeliveryLon float64         `json:"deliveryLon,omitempty"`
}

type OrderItem struct {
	ProductID ID              `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderItemWithContext is a single order item carrying the order fields
// needed downstream once the item has been re-keyed by product.
type OrderItemWithContext struct {
	OrderID   ID        `json:"orderId"`
	CreatedAt Timestamp `json:"createdAt"`
	OrderItem OrderItem `json:"orderItem"`
}
