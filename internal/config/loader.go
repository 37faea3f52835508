package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pizzastream/internal/constants"
)

// LoadConfig reads configFile (optional) and layers defaults and
// environment variables under it.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "30s")

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("broker.kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("broker.kafka.group_id", "pizzastream")
	viper.SetDefault("broker.kafka.start_offset", "first")
	viper.SetDefault("broker.kafka.topics.orders", constants.DefaultOrdersTopic)
	viper.SetDefault("broker.kafka.topics.order_statuses", constants.DefaultOrderStatusesTopic)
	viper.SetDefault("broker.kafka.topics.products", constants.DefaultProductsTopic)
	viper.SetDefault("broker.kafka.topics.enriched_order_items", constants.DefaultEnrichedOrderItemsTopic)
	viper.SetDefault("broker.kafka.topics.enriched_orders", constants.DefaultEnrichedOrdersTopic)
	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", "1s")
	viper.SetDefault("broker.kafka.retry.max_interval", "30s")
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)
	viper.SetDefault("broker.kafka.retry.max_elapsed_time", "5m")

	viper.SetDefault("streams.partitions", constants.DefaultPartitions)
	viper.SetDefault("streams.status_join.before", constants.DefaultJoinBefore)
	viper.SetDefault("streams.status_join.after", constants.DefaultJoinAfter)
	viper.SetDefault("streams.status_join.grace", constants.DefaultJoinGrace)
	viper.SetDefault("streams.status_join.sweep_interval", constants.DefaultJoinSweep)
	viper.SetDefault("streams.revenue.size", constants.DefaultWindowSize)
	viper.SetDefault("streams.revenue.advance", constants.DefaultWindowAdvance)
	viper.SetDefault("streams.revenue.grace", constants.DefaultWindowGrace)
	viper.SetDefault("streams.state.backend", constants.StateBackendMemory)
	viper.SetDefault("streams.state.dir", constants.DefaultStateDir)
	viper.SetDefault("streams.serde.format", constants.SerdeFormatJSON)

	viper.SetDefault("catalog.backend", constants.CatalogBackendMemory)

	viper.SetDefault("query.initial_interval", constants.DefaultQueryInitialInterval)
	viper.SetDefault("query.max_interval", constants.DefaultQueryMaxInterval)
	viper.SetDefault("query.timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.key_prefix", "pizzastream:")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.rps", 20.0)
	viper.SetDefault("rate_limit.burst", 40)
	viper.SetDefault("rate_limit.cleanup_interval", 60)
	viper.SetDefault("rate_limit.max_age", 300)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 3)

	viper.SetDefault("tracing.service_name", "streams-service")
	viper.SetDefault("tracing.sampler.type", "parentbased_always_on")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	// Topic names keep the variable names used by the existing deployment.
	viper.BindEnv("broker.kafka.topics.orders", "ORDERS_TOPIC")
	viper.BindEnv("broker.kafka.topics.order_statuses", "ORDER_STATUSES_TOPIC")
	viper.BindEnv("broker.kafka.topics.products", "PRODUCTS_TOPIC")
	viper.BindEnv("broker.kafka.topics.enriched_order_items", "ENRICHED_ORDER_ITEMS_TOPIC")
	viper.BindEnv("broker.kafka.topics.enriched_orders", "ENRICHED_ORDERS_TOPIC")

	viper.BindEnv("streams.partitions", "STREAMS_PARTITIONS")
	viper.BindEnv("streams.state.backend", "STREAMS_STATE_BACKEND")
	viper.BindEnv("streams.state.dir", "STREAMS_STATE_DIR")
	viper.BindEnv("streams.serde.format", "STREAMS_SERDE_FORMAT")

	viper.BindEnv("catalog.backend", "CATALOG_BACKEND")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
