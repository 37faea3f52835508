package models

import "github.com/shopspring/decimal"

// Product is a catalog row. The catalog is a table: the latest value per id wins.
type Product struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
}
