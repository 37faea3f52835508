package catalog

import (
	"context"
	"fmt"

	"pizzastream/internal/config"
	"pizzastream/pkg/circuitbreaker"
	"pizzastream/pkg/models"
)

const breakerName = "catalog-table"

// CircuitBreakerTable guards a remote Table. With the breaker disabled it is
// a plain pass-through.
type CircuitBreakerTable struct {
	table Table
	cb    *circuitbreaker.Breaker
}

type lookupResult struct {
	product models.Product
	found   bool
}

func NewCircuitBreakerTable(table Table, cfg config.CircuitBreakerConfig) *CircuitBreakerTable {
	if !cfg.Enabled {
		return &CircuitBreakerTable{table: table}
	}
	return &CircuitBreakerTable{
		table: table,
		cb:    circuitbreaker.New(breakerName, cfg),
	}
}

func (t *CircuitBreakerTable) Upsert(ctx context.Context, product models.Product) error {
	if t.cb == nil {
		return t.table.Upsert(ctx, product)
	}
	_, err := circuitbreaker.Do(ctx, t.cb, func() (struct{}, error) {
		return struct{}{}, t.table.Upsert(ctx, product)
	})
	return t.wrap(err)
}

func (t *CircuitBreakerTable) Delete(ctx context.Context, id models.ID) error {
	if t.cb == nil {
		return t.table.Delete(ctx, id)
	}
	_, err := circuitbreaker.Do(ctx, t.cb, func() (struct{}, error) {
		return struct{}{}, t.table.Delete(ctx, id)
	})
	return t.wrap(err)
}

func (t *CircuitBreakerTable) Lookup(ctx context.Context, id models.ID) (models.Product, bool, error) {
	if t.cb == nil {
		return t.table.Lookup(ctx, id)
	}
	res, err := circuitbreaker.Do(ctx, t.cb, func() (lookupResult, error) {
		p, found, err := t.table.Lookup(ctx, id)
		return lookupResult{product: p, found: found}, err
	})
	if err != nil {
		return models.Product{}, false, t.wrap(err)
	}
	return res.product, res.found, nil
}

func (t *CircuitBreakerTable) wrap(err error) error {
	if err == nil {
		return nil
	}
	if t.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for %s: %w", breakerName, err)
	}
	return err
}

func (t *CircuitBreakerTable) State() string {
	if t.cb == nil {
		return "disabled"
	}
	return t.cb.State().String()
}

func (t *CircuitBreakerTable) IsOpen() bool {
	return t.cb != nil && t.cb.IsOpen()
}
