package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	"pizzastream/internal/logger"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/logging"
	"pizzastream/pkg/metrics"
	"pizzastream/pkg/retry"
	"pizzastream/pkg/tracing"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr: kafka.TCP(cfg.Brokers...),
		// Same key, same partition, same placement as the Java client.
		Balancer:     &kafka.Murmur2Balancer{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: "producer"}
}

func (p *KafkaProducer) Publish(ctx context.Context, msg Message) error {
	headers := tracing.InjectTraceContext(ctx, msg.Headers)

	start := time.Now()
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   msg.Topic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, msg.Topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, msg.Topic)
	metrics.ObserveKafkaMessageSize(p.serviceName, msg.Topic, "out", len(msg.Value))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// ErrConsumerClosed is returned by Consume after Close.
var ErrConsumerClosed = errors.New("consumer closed")

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	groupID     string
	wg          sync.WaitGroup
	mu          sync.Mutex // guards reader and closed
	reader      *kafka.Reader
	closed      bool
	logger      logger.Logger
	dlqProducer Producer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, groupID string, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		groupID:     groupID,
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func startOffset(name string) int64 {
	if name == "last" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

func (c *KafkaConsumer) Consume(ctx context.Context, topics []string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topics", topics,
		"brokers", c.cfg.Brokers,
		"group_id", c.groupID,
		"service_name", c.serviceName,
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConsumerClosed
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     c.groupID,
		GroupTopics: topics,
		StartOffset: startOffset(c.cfg.StartOffset),
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	c.reader = reader
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topics", topics,
		)

		for {
			fetchStart := time.Now()
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topics", topics,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topics", topics,
				)
				time.Sleep(time.Second)
				continue
			}
			metrics.ObserveKafkaReadDuration(c.serviceName, m.Topic, time.Since(fetchStart))
			metrics.IncKafkaMessagesRead(c.serviceName, m.Topic)
			metrics.ObserveKafkaMessageSize(c.serviceName, m.Topic, "in", len(m.Value))
			if m.HighWaterMark > 0 {
				metrics.SetKafkaConsumerLag(c.serviceName, m.Topic, m.Partition, m.HighWaterMark-m.Offset-1)
			}

			c.process(consumeCtx, m, handler)

			if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
					"error", err,
					"topic", m.Topic,
					"offset", m.Offset,
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// process runs handler for one record. Failures are logged and, when a DLQ
// is configured, forwarded there; the record is committed either way so a
// poison record never blocks its partition.
func (c *KafkaConsumer) process(ctx context.Context, m kafka.Message, handler HandlerFunc) {
	rec := Record{
		Message: Message{
			Topic:   m.Topic,
			Key:     m.Key,
			Value:   m.Value,
			Headers: m.Headers,
		},
		Partition: m.Partition,
		Offset:    m.Offset,
		Time:      m.Time,
	}

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m)
	defer span.End()

	msgCtx = logging.WithRecord(msgCtx, logging.RecordMeta{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
	})
	if sc := span.SpanContext(); sc.HasTraceID() {
		msgCtx = logging.WithTraceID(msgCtx, sc.TraceID().String())
	}

	err := c.processMessageWithRetry(msgCtx, rec, handler)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	reason := "max_retries_exceeded"
	if apperrors.IsMalformed(err) {
		reason = "malformed"
		metrics.IncMalformed(m.Topic)
	}
	span.RecordError(err)
	c.logger.ErrorwCtx(msgCtx, "Failed to process message",
		"error", err,
		"reason", reason,
	)

	if c.dlqProducer == nil || c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(msgCtx, "No DLQ configured, committing message to avoid blocking")
		return
	}
	if dlqErr := c.sendToDLQ(msgCtx, rec, err, reason); dlqErr != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ",
			"error", dlqErr,
		)
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	reader := c.reader
	c.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			}
		}
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) retryPolicy() retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}
	return policy
}

func (c *KafkaConsumer) processMessageWithRetry(ctx context.Context, rec Record, handler HandlerFunc) error {
	policy := c.retryPolicy()

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
				)
			}
		}()
		return handler(ctx, rec)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, rec.Topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
}

// sendToDLQ forwards the original bytes unchanged; the failure is described
// in headers.
func (c *KafkaConsumer) sendToDLQ(ctx context.Context, rec Record, originalErr error, reason string) error {
	headers := make([]kafka.Header, 0, len(rec.Headers)+3)
	headers = append(headers, rec.Headers...)
	headers = append(headers,
		kafka.Header{Key: constants.HeaderDLQReason, Value: []byte(originalErr.Error())},
		kafka.Header{Key: constants.HeaderDLQSourceTopic, Value: []byte(rec.Topic)},
		kafka.Header{Key: constants.HeaderDLQPipeline, Value: []byte(c.serviceName)},
	)

	err := c.dlqProducer.Publish(ctx, Message{
		Topic:   c.cfg.DLQTopic,
		Key:     rec.Key,
		Value:   rec.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, rec.Topic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"dlq_topic", c.cfg.DLQTopic,
		"reason", reason,
	)

	return nil
}
