// Package catalog materializes the product changelog into a table and joins
// re-keyed order items against it.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	"pizzastream/pkg/metrics"
	"pizzastream/pkg/models"
)

// Table holds the latest product row per id. A later Upsert for the same id
// replaces the earlier one; Delete is a tombstone.
type Table interface {
	Upsert(ctx context.Context, product models.Product) error
	Delete(ctx context.Context, id models.ID) error
	Lookup(ctx context.Context, id models.ID) (models.Product, bool, error)
}

// New builds the backend selected in cfg. client is only used by the redis
// backend and may be nil otherwise.
func New(cfg config.CatalogConfig, client redis.UniversalClient, keyPrefix string) (Table, error) {
	switch cfg.Backend {
	case "", constants.CatalogBackendMemory:
		return NewMemoryTable(), nil
	case constants.CatalogBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis catalog backend requires a redis client")
		}
		return NewRedisTable(client, keyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend: %s", cfg.Backend)
	}
}

type MemoryTable struct {
	mu   sync.RWMutex
	rows map[models.ID]models.Product
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{rows: make(map[models.ID]models.Product)}
}

func (t *MemoryTable) Upsert(_ context.Context, product models.Product) error {
	t.mu.Lock()
	t.rows[product.ID] = product
	n := len(t.rows)
	t.mu.Unlock()

	metrics.SetCatalogTableSize(n)
	return nil
}

func (t *MemoryTable) Delete(_ context.Context, id models.ID) error {
	t.mu.Lock()
	delete(t.rows, id)
	n := len(t.rows)
	t.mu.Unlock()

	metrics.SetCatalogTableSize(n)
	return nil
}

func (t *MemoryTable) Lookup(_ context.Context, id models.ID) (models.Product, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.rows[id]
	return p, ok, nil
}

func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
