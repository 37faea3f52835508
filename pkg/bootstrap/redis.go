package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pizzastream/internal/config"
	"pizzastream/internal/logger"
)

// InitRedis connects to Redis and checks the connection. It returns a nil
// client when no host is configured.
func InitRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (redis.UniversalClient, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Infow("Redis connected successfully", "host", cfg.Host, "port", cfg.Port)
	return rdb, nil
}
