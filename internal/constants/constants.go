package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	DefaultOrdersTopic             = "orders"
	DefaultOrderStatusesTopic      = "ordersStatuses"
	DefaultProductsTopic           = "mysql-connector-1.pizzashop.products"
	DefaultEnrichedOrderItemsTopic = "enriched-order-items"
	DefaultEnrichedOrdersTopic     = "enriched-orders"
)

// Consumer group suffixes, one group per pipeline.
const (
	GroupSuffixItems    = "-items"
	GroupSuffixStatuses = "-statuses"
	GroupSuffixRevenue  = "-revenue"
)

const (
	PipelineItems    = "items"
	PipelineStatuses = "statuses"
	PipelineRevenue  = "revenue"
)

const (
	DefaultJoinBefore = 2 * time.Hour
	DefaultJoinAfter  = 2 * time.Hour
	DefaultJoinGrace  = 4 * time.Hour
	DefaultJoinSweep  = 30 * time.Second
)

const (
	DefaultWindowSize    = 60 * time.Second
	DefaultWindowAdvance = 1 * time.Second
	DefaultWindowGrace   = 60 * time.Second
)

const (
	DefaultPartitions = 8
	DefaultStateDir   = "data/windows"
)

const (
	StateBackendMemory = "memory"
	StateBackendPebble = "pebble"
)

const (
	CatalogBackendMemory = "memory"
	CatalogBackendRedis  = "redis"
)

const (
	SerdeFormatJSON = "json"
)

const (
	CacheKeyPrefixProduct = "product:"
)

const (
	DefaultQueryInitialInterval = 10 * time.Millisecond
	DefaultQueryMaxInterval     = 1 * time.Second
)

// DLQ headers
const (
	HeaderDLQReason      = "x-dlq-reason"
	HeaderDLQSourceTopic = "x-dlq-source-topic"
	HeaderDLQPipeline    = "x-dlq-pipeline"
)
