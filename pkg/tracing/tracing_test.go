package tracing

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"pizzastream/internal/config"
)

func TestKafkaHeaders_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "x-dlq-reason", Value: []byte("boom")}})
	require.Len(t, headers, 2)

	var found bool
	for _, h := range headers {
		if h.Key == "traceparent" {
			found = true
		}
	}
	assert.True(t, found)

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.True(t, extracted.IsRemote())
}

func TestKafkaHeaders_InjectReplacesExisting(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := []kafka.Header{{Key: "traceparent", Value: []byte("stale")}}
	headers = InjectTraceContext(ctx, headers)
	require.Len(t, headers, 1)
	assert.NotEqual(t, "stale", string(headers[0].Value))
}

func TestInit_DisabledKeepsPropagation(t *testing.T) {
	tp, err := Init(config.TracingConfig{}, "streams-service")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := otel.Tracer("test").Start(context.Background(), "consume")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())

	headers := InjectTraceContext(ctx, nil)
	assert.NotEmpty(t, headers)
}

func TestSampler_Types(t *testing.T) {
	assert.Contains(t, sampler(config.SamplerConfig{Type: "always_off"}).Description(), "AlwaysOff")
	assert.Contains(t, sampler(config.SamplerConfig{Type: "always_on"}).Description(), "AlwaysOn")
	assert.Contains(t, sampler(config.SamplerConfig{}).Description(), "ParentBased")
}

func TestTraced_OnlyAPIRoutes(t *testing.T) {
	assert.True(t, traced(httptest.NewRequest("GET", "/api/v1/orders/overview", nil)))
	assert.False(t, traced(httptest.NewRequest("GET", "/health", nil)))
	assert.False(t, traced(httptest.NewRequest("GET", "/metrics", nil)))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
