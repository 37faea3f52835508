package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pizzastream"

const (
	StageCatalogJoin = "catalog_join"
	StageStatusJoin  = "status_join"
	StageAggregate   = "aggregate"
)

var (
	StreamRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_records_total",
			Help:      "Total number of input records processed per pipeline (count)",
		},
		[]string{"pipeline", "topic", "status"},
	)

	StreamProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_processing_duration_ms",
			Help:      "Processing duration of one input record in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"pipeline"},
	)

	StreamJoinUnmatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_join_unmatched_total",
			Help:      "Total number of join inputs dropped without producing output (count)",
		},
		[]string{"stage", "reason"},
	)

	StreamJoinMatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_join_matched_total",
			Help:      "Total number of join results emitted (count)",
		},
		[]string{"stage"},
	)

	StreamRecordsMalformedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_records_malformed_total",
			Help:      "Total number of input records that could not be decoded or validated (count)",
		},
		[]string{"topic"},
	)

	StreamLateRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_late_records_total",
			Help:      "Total number of window contributions dropped because the window was closed (count)",
		},
		[]string{"stage"},
	)

	StatusJoinBuffered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status_join_buffered_records",
			Help:      "Records held in status join buffers (count)",
		},
		[]string{"partition", "side"},
	)

	CatalogTableSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_table_size",
			Help:      "Number of products held by the in-memory catalog table (count)",
		},
	)

	WindowStoreOpenWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_store_open_windows",
			Help:      "Number of windows currently held by the window store (count)",
		},
	)

	WindowStoreReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_store_ready",
			Help:      "Whether the window store is ready to serve queries (0 or 1)",
		},
	)

	QueryWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_query_duration_ms",
			Help:      "Duration of summary queries including the wait for window state in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_messages_total",
			Help:      "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures_total",
			Help:      "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_requests_total",
			Help:      "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_read_total",
			Help:      "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_written_total",
			Help:      "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_message_size_bytes",
			Help:      "Size of Kafka messages in bytes",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kafka_consumer_lag",
			Help:      "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_read_duration_ms",
			Help:      "Duration of reading messages from Kafka in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_write_duration_ms",
			Help:      "Duration of writing messages to Kafka in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

func RegisterStreamMetrics() {
	prometheus.MustRegister(StreamRecordsTotal)
	prometheus.MustRegister(StreamProcessingDuration)
	prometheus.MustRegister(StreamJoinUnmatchedTotal)
	prometheus.MustRegister(StreamJoinMatchedTotal)
	prometheus.MustRegister(StreamRecordsMalformedTotal)
	prometheus.MustRegister(StreamLateRecordsTotal)
	prometheus.MustRegister(StatusJoinBuffered)
	prometheus.MustRegister(CatalogTableSize)
	prometheus.MustRegister(WindowStoreOpenWindows)
	prometheus.MustRegister(WindowStoreReady)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(QueryWaitDuration)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func IncStreamRecord(pipeline, topic, status string) {
	StreamRecordsTotal.WithLabelValues(pipeline, topic, status).Inc()
}

func ObserveStreamProcessing(pipeline string, duration time.Duration) {
	StreamProcessingDuration.WithLabelValues(pipeline).Observe(float64(duration.Microseconds()) / 1000)
}

func IncJoinUnmatched(stage, reason string) {
	StreamJoinUnmatchedTotal.WithLabelValues(stage, reason).Inc()
}

func IncJoinMatched(stage string) {
	StreamJoinMatchedTotal.WithLabelValues(stage).Inc()
}

func IncMalformed(topic string) {
	StreamRecordsMalformedTotal.WithLabelValues(topic).Inc()
}

func AddLateRecords(stage string, n int) {
	StreamLateRecordsTotal.WithLabelValues(stage).Add(float64(n))
}

func SetStatusJoinBuffered(partition int, side string, n int) {
	StatusJoinBuffered.WithLabelValues(fmt.Sprintf("%d", partition), side).Set(float64(n))
}

func SetCatalogTableSize(n int) {
	CatalogTableSize.Set(float64(n))
}

func SetOpenWindows(n int) {
	WindowStoreOpenWindows.Set(float64(n))
}

func SetWindowStoreReady(ready bool) {
	if ready {
		WindowStoreReady.Set(1)
		return
	}
	WindowStoreReady.Set(0)
}

func ObserveQueryDuration(duration time.Duration) {
	QueryWaitDuration.Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
