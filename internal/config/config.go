package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Redis          RedisConfig
	Broker         BrokerConfig
	Streams        StreamsConfig
	Catalog        CatalogConfig
	Query          QueryConfig
	Logging        LoggingConfig
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers  []string     `mapstructure:"brokers"`
	GroupID  string       `mapstructure:"group_id"`
	Topics   TopicsConfig `mapstructure:"topics"`
	DLQTopic string       `mapstructure:"dlq_topic"`

	// StartOffset applies to consumer groups without committed offsets: "first" or "last".
	StartOffset string      `mapstructure:"start_offset"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type TopicsConfig struct {
	Orders             string `mapstructure:"orders"`
	OrderStatuses      string `mapstructure:"order_statuses"`
	Products           string `mapstructure:"products"`
	EnrichedOrderItems string `mapstructure:"enriched_order_items"`
	EnrichedOrders     string `mapstructure:"enriched_orders"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type StreamsConfig struct {
	Partitions int                 `mapstructure:"partitions"`
	StatusJoin JoinWindowConfig    `mapstructure:"status_join"`
	Revenue    HoppingWindowConfig `mapstructure:"revenue"`
	State      StateConfig         `mapstructure:"state"`
	Serde      SerdeConfig         `mapstructure:"serde"`
}

type JoinWindowConfig struct {
	Before        time.Duration `mapstructure:"before"`
	After         time.Duration `mapstructure:"after"`
	Grace         time.Duration `mapstructure:"grace"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type HoppingWindowConfig struct {
	Size    time.Duration `mapstructure:"size"`
	Advance time.Duration `mapstructure:"advance"`
	Grace   time.Duration `mapstructure:"grace"`
}

type StateConfig struct {
	// Backend is "memory" or "pebble".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type SerdeConfig struct {
	Format string `mapstructure:"format"`
}

type CatalogConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`
}

type QueryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
