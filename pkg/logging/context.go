package logging

import (
	"context"
	"strconv"
)

const (
	TraceIDKey     = "trace_id"
	ServiceNameKey = "service_name"
	TopicKey       = "topic"
	PartitionKey   = "partition"
	OffsetKey      = "offset"
	RecordKeyKey   = "record_key"
)

type ctxKey int

const (
	traceIDCtxKey ctxKey = iota
	serviceNameCtxKey
	recordCtxKey
)

// RecordMeta identifies the input record a log line is about.
type RecordMeta struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey, traceID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, serviceNameCtxKey, serviceName)
}

func WithRecord(ctx context.Context, meta RecordMeta) context.Context {
	return context.WithValue(ctx, recordCtxKey, meta)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDCtxKey).(string); ok {
		return traceID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(serviceNameCtxKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetRecord(ctx context.Context) (RecordMeta, bool) {
	meta, ok := ctx.Value(recordCtxKey).(RecordMeta)
	return meta, ok
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 12)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDKey, traceID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameKey, serviceName)
	}

	if meta, ok := GetRecord(ctx); ok {
		fields = append(fields,
			TopicKey, meta.Topic,
			PartitionKey, strconv.Itoa(meta.Partition),
			OffsetKey, meta.Offset,
		)
		if meta.Key != "" {
			fields = append(fields, RecordKeyKey, meta.Key)
		}
	}

	return fields
}
