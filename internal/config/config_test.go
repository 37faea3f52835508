package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"pizzastream/internal/constants"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	topics := cfg.Broker.Kafka.Topics
	assert.Equal(t, "orders", topics.Orders)
	assert.Equal(t, "ordersStatuses", topics.OrderStatuses)
	assert.Equal(t, "mysql-connector-1.pizzashop.products", topics.Products)
	assert.Equal(t, "enriched-order-items", topics.EnrichedOrderItems)
	assert.Equal(t, "enriched-orders", topics.EnrichedOrders)

	assert.Equal(t, 2*time.Hour, cfg.Streams.StatusJoin.Before)
	assert.Equal(t, 4*time.Hour, cfg.Streams.StatusJoin.Grace)
	assert.Equal(t, 60*time.Second, cfg.Streams.Revenue.Size)
	assert.Equal(t, time.Second, cfg.Streams.Revenue.Advance)
	assert.Equal(t, constants.StateBackendMemory, cfg.Streams.State.Backend)
	assert.Equal(t, "json", cfg.Streams.Serde.Format)
}

func TestLoadConfig_TopicEnvOverrides(t *testing.T) {
	t.Setenv("ORDERS_TOPIC", "orders-v2")
	t.Setenv("ENRICHED_ORDERS_TOPIC", "enriched-orders-v2")
	t.Setenv("BROKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "orders-v2", cfg.Broker.Kafka.Topics.Orders)
	assert.Equal(t, "enriched-orders-v2", cfg.Broker.Kafka.Topics.EnrichedOrders)
	assert.Equal(t, "ordersStatuses", cfg.Broker.Kafka.Topics.OrderStatuses)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
streams:
  partitions: 4
  state:
    backend: pebble
    dir: /var/lib/pizzastream
catalog:
  backend: redis
redis:
  host: redis
  port: 6379
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Streams.Partitions)
	assert.Equal(t, constants.StateBackendPebble, cfg.Streams.State.Backend)
	assert.Equal(t, constants.CatalogBackendRedis, cfg.Catalog.Backend)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_RejectsNonJSONSerde(t *testing.T) {
	t.Setenv("STREAMS_SERDE_FORMAT", "avro")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "streams.serde.format")
}

func TestValidateStreams_CollectsAllErrors(t *testing.T) {
	err := validateStreams(StreamsConfig{
		Partitions: 0,
		Revenue:    HoppingWindowConfig{Size: time.Second, Advance: 2 * time.Second},
		State:      StateConfig{Backend: constants.StateBackendPebble},
		Serde:      SerdeConfig{Format: "json"},
	})

	errs := multierr.Errors(err)
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		var vErr *ValidationError
		require.ErrorAs(t, e, &vErr)
		fields = append(fields, vErr.Field)
	}
	assert.ElementsMatch(t, []string{"streams.partitions", "streams.revenue.advance", "streams.state.dir"}, fields)
}

func TestValidateStreams_SubMillisecondWindows(t *testing.T) {
	valid := StreamsConfig{
		Partitions: 1,
		State:      StateConfig{Backend: constants.StateBackendMemory},
		Serde:      SerdeConfig{Format: "json"},
	}

	tests := []struct {
		name    string
		revenue HoppingWindowConfig
		field   string
	}{
		{"advance under a millisecond", HoppingWindowConfig{Size: time.Minute, Advance: 500 * time.Microsecond}, "streams.revenue.advance"},
		{"fractional advance", HoppingWindowConfig{Size: time.Minute, Advance: 1500 * time.Microsecond}, "streams.revenue.advance"},
		{"fractional size", HoppingWindowConfig{Size: time.Minute + time.Microsecond, Advance: time.Second}, "streams.revenue.size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Revenue = tt.revenue
			var vErr *ValidationError
			require.ErrorAs(t, validateStreams(cfg), &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	valid.Revenue = HoppingWindowConfig{Size: time.Minute, Advance: time.Second, Grace: time.Minute}
	assert.NoError(t, validateStreams(valid))
}

func TestValidateCatalog_RedisRequiresHost(t *testing.T) {
	err := validateCatalog(CatalogConfig{Backend: constants.CatalogBackendRedis}, RedisConfig{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "redis.host", vErr.Field)

	assert.NoError(t, validateCatalog(CatalogConfig{Backend: constants.CatalogBackendMemory}, RedisConfig{}))
}
