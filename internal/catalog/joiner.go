package catalog

import (
	"context"
	"fmt"

	"pizzastream/pkg/metrics"
	"pizzastream/pkg/models"
	"pizzastream/pkg/stream"
)

// Joiner is the stream side of the stream-table join. Each item is looked up
// once, at processing time; a product that shows up later does not replay
// items that were already dropped.
type Joiner struct {
	table Table
}

func NewJoiner(table Table) *Joiner {
	return &Joiner{table: table}
}

// Apply folds one changelog record into the table. A nil product is a
// tombstone for id.
func (j *Joiner) Apply(ctx context.Context, id models.ID, product *models.Product) error {
	if product == nil {
		return j.table.Delete(ctx, id)
	}
	return j.table.Upsert(ctx, *product)
}

func (j *Joiner) Join(ctx context.Context, productID models.ID, item models.OrderItemWithContext) (stream.Outcome[models.HydratedOrderItem], error) {
	product, found, err := j.table.Lookup(ctx, productID)
	if err != nil {
		return stream.Outcome[models.HydratedOrderItem]{}, fmt.Errorf("catalog lookup %s: %w", productID, err)
	}
	if !found {
		metrics.IncJoinUnmatched(metrics.StageCatalogJoin, string(stream.ReasonNoTableEntry))
		return stream.Unmatched[models.HydratedOrderItem](stream.ReasonNoTableEntry), nil
	}

	metrics.IncJoinMatched(metrics.StageCatalogJoin)
	return stream.Matched(models.HydratedOrderItem{
		OrderID:   item.OrderID,
		CreatedAt: item.CreatedAt,
		Product:   product,
		OrderItem: item.OrderItem,
	}), nil
}
