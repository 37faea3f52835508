package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"pizzastream/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks every section and reports all failures at once.
func ValidateStatic(cfg *Config) error {
	return multierr.Combine(
		validateServer(cfg.Server),
		validateBroker(cfg.Broker),
		validateStreams(cfg.Streams),
		validateCatalog(cfg.Catalog, cfg.Redis),
		validateQuery(cfg.Query),
		validateRateLimit(cfg.RateLimit),
		validateTracing(cfg.Tracing),
	)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	topics := map[string]string{
		"broker.kafka.topics.orders":               cfg.Topics.Orders,
		"broker.kafka.topics.order_statuses":       cfg.Topics.OrderStatuses,
		"broker.kafka.topics.products":             cfg.Topics.Products,
		"broker.kafka.topics.enriched_order_items": cfg.Topics.EnrichedOrderItems,
		"broker.kafka.topics.enriched_orders":      cfg.Topics.EnrichedOrders,
	}
	var errs error
	for field, topic := range topics {
		if strings.TrimSpace(topic) == "" {
			errs = multierr.Append(errs, &ValidationError{
				Field:   field,
				Message: "topic name cannot be empty",
			})
		}
	}
	if errs != nil {
		return errs
	}

	switch strings.ToLower(cfg.StartOffset) {
	case "", "first", "last":
	default:
		return &ValidationError{
			Field:   "broker.kafka.start_offset",
			Message: fmt.Sprintf("invalid start offset: %s (valid: first, last)", cfg.StartOffset),
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.InitialInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateStreams(cfg StreamsConfig) error {
	var errs error

	if cfg.Partitions < 1 {
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.partitions",
			Message: fmt.Sprintf("partitions must be at least 1, got %d", cfg.Partitions),
		})
	}

	join := cfg.StatusJoin
	if join.Before < 0 || join.After < 0 || join.Grace < 0 {
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.status_join",
			Message: "before, after and grace must be non-negative",
		})
	}

	// Window boundaries are computed in epoch milliseconds.
	rev := cfg.Revenue
	if rev.Size < time.Millisecond || rev.Size%time.Millisecond != 0 {
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.revenue.size",
			Message: fmt.Sprintf("window size must be a positive whole number of milliseconds, got %s", rev.Size),
		})
	}
	if rev.Advance < time.Millisecond || rev.Advance%time.Millisecond != 0 || rev.Advance > rev.Size {
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.revenue.advance",
			Message: fmt.Sprintf("advance must be a positive whole number of milliseconds not larger than size, got %s", rev.Advance),
		})
	}
	if rev.Grace < 0 {
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.revenue.grace",
			Message: "grace must be non-negative",
		})
	}

	switch cfg.State.Backend {
	case constants.StateBackendMemory:
	case constants.StateBackendPebble:
		if cfg.State.Dir == "" {
			errs = multierr.Append(errs, &ValidationError{
				Field:   "streams.state.dir",
				Message: "state directory is required for the pebble backend",
			})
		}
	default:
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.state.backend",
			Message: fmt.Sprintf("unknown state backend: %s (valid: memory, pebble)", cfg.State.Backend),
		})
	}

	if !strings.EqualFold(cfg.Serde.Format, constants.SerdeFormatJSON) {
		errs = multierr.Append(errs, &ValidationError{
			Field:   "streams.serde.format",
			Message: fmt.Sprintf("unsupported serialization format: %s (valid: json)", cfg.Serde.Format),
		})
	}

	return errs
}

func validateCatalog(cfg CatalogConfig, redisCfg RedisConfig) error {
	switch cfg.Backend {
	case constants.CatalogBackendMemory:
		return nil
	case constants.CatalogBackendRedis:
		return validateRedis(redisCfg)
	default:
		return &ValidationError{
			Field:   "catalog.backend",
			Message: fmt.Sprintf("unknown catalog backend: %s (valid: memory, redis)", cfg.Backend),
		}
	}
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateQuery(cfg QueryConfig) error {
	if cfg.InitialInterval <= 0 {
		return &ValidationError{
			Field:   "query.initial_interval",
			Message: "initial_interval must be positive",
		}
	}

	if cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "query.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	return nil
}

func validateRateLimit(cfg RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.RPS <= 0 {
		return &ValidationError{
			Field:   "rate_limit.rps",
			Message: "rps must be positive when rate limiting is enabled",
		}
	}

	if cfg.Burst < 1 {
		return &ValidationError{
			Field:   "rate_limit.burst",
			Message: "burst must be at least 1",
		}
	}

	return nil
}

func validateTracing(cfg TracingConfig) error {
	if cfg.Enabled && cfg.OTLP.Endpoint == "" {
		return &ValidationError{
			Field:   "tracing.otlp.endpoint",
			Message: "OTLP endpoint is required when tracing is enabled",
		}
	}

	return nil
}
