package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pizzastream/internal/constants"
	"pizzastream/pkg/models"
)

// RedisTable keeps one JSON document per product so that several service
// instances can share the catalog.
type RedisTable struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTable(client redis.UniversalClient, keyPrefix string) *RedisTable {
	return &RedisTable{
		client: client,
		prefix: keyPrefix + constants.CacheKeyPrefixProduct,
	}
}

func (t *RedisTable) key(id models.ID) string {
	return t.prefix + id.String()
}

func (t *RedisTable) Upsert(ctx context.Context, product models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.ID, err)
	}
	if err := t.client.Set(ctx, t.key(product.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (t *RedisTable) Delete(ctx context.Context, id models.ID) error {
	if err := t.client.Del(ctx, t.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (t *RedisTable) Lookup(ctx context.Context, id models.ID) (models.Product, bool, error) {
	data, err := t.client.Get(ctx, t.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Product{}, false, nil
		}
		return models.Product{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Product{}, false, fmt.Errorf("failed to unmarshal product %s: %w", id, err)
	}
	return p, true, nil
}
