package models

// Status is a step in the delivery lifecycle of an order.
type Status string

const (
	StatusPlacedOrder    Status = "PLACED_ORDER"
	StatusOrderConfirmed Status = "ORDER_CONFIRMED"
	StatusBeingPrepared  Status = "BEING_PREPARED"
	StatusBeingCooked    Status = "BEING_COOKED"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusArrivingAtDoor Status = "ARRIVING_AT_DOOR"
	StatusDelivered      Status = "DELIVERED"
)

// Statuses lists the lifecycle in transition order.
var Statuses = []Status{
	StatusPlacedOrder,
	StatusOrderConfirmed,
	StatusBeingPrepared,
	StatusBeingCooked,
	StatusOutForDelivery,
	StatusArrivingAtDoor,
	StatusDelivered,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// OrderStatus records one status transition of an order.
type OrderStatus struct {
	ID        ID        `json:"id"`
	UpdatedAt Timestamp `json:"updatedAt"`
	Status    Status    `json:"status"`
}
