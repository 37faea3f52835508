package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is an outbound record. Values are already encoded.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

// Record is an inbound record with its position in the log.
type Record struct {
	Message
	Partition int
	Offset    int64
	Time      time.Time
}

type Producer interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type Consumer interface {
	// Consume delivers records from topics to handler until ctx is done.
	// A record's offset is committed once handler returns for it.
	Consume(ctx context.Context, topics []string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, rec Record) error
