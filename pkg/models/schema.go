package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateOrder(o *Order) error {
	if o == nil {
		return &ValidationError{
			Field:   "order",
			Message: "order cannot be nil",
		}
	}

	if o.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "order ID is required",
		}
	}

	if o.CreatedAt.IsZero() {
		return &ValidationError{
			Field:   "createdAt",
			Message: "order creation time is required",
		}
	}

	for i, item := range o.Items {
		if item.ProductID == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: "product ID is required",
			}
		}
		if item.Quantity < 1 {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("quantity must be at least 1, got %d", item.Quantity),
			}
		}
	}

	return nil
}

func ValidateOrderStatus(s *OrderStatus) error {
	if s == nil {
		return &ValidationError{
			Field:   "orderStatus",
			Message: "order status cannot be nil",
		}
	}

	if s.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "order ID is required",
		}
	}

	if s.UpdatedAt.IsZero() {
		return &ValidationError{
			Field:   "updatedAt",
			Message: "status update time is required",
		}
	}

	if !s.Status.Valid() {
		return &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown status: %q", s.Status),
		}
	}

	return nil
}

func ValidateProduct(p *Product) error {
	if p == nil {
		return &ValidationError{
			Field:   "product",
			Message: "product cannot be nil",
		}
	}

	if p.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "product ID is required",
		}
	}

	return nil
}
