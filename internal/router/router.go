// Package router re-keys orders by product so each item can be joined with
// the catalog.
package router

import (
	"iter"

	"pizzastream/pkg/models"
)

// Items yields one (productID, item) pair per order item, in item order.
// The sequence is lazy and can be ranged over more than once.
func Items(order models.Order) iter.Seq2[string, models.OrderItemWithContext] {
	return func(yield func(string, models.OrderItemWithContext) bool) {
		for _, item := range order.Items {
			routed := models.OrderItemWithContext{
				OrderID:   order.ID,
				CreatedAt: order.CreatedAt,
				OrderItem: item,
			}
			if !yield(item.ProductID.String(), routed) {
				return
			}
		}
	}
}
