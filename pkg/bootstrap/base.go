package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"pizzastream/internal/broker"
	"pizzastream/internal/config"
	"pizzastream/internal/logger"
)

// Base owns the broker clients of a service so they can be closed together.
type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Producer  broker.Producer
	Consumers map[string]broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config:    cfg,
		Logger:    log,
		Consumers: make(map[string]broker.Consumer),
	}
}

func (b *Base) InitProducer() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return nil
}

// InitConsumer creates the consumer for one pipeline in the consumer group
// "<group_id><groupSuffix>".
func (b *Base) InitConsumer(pipeline, groupSuffix string) (broker.Consumer, error) {
	groupID := b.Config.Broker.Kafka.GroupID + groupSuffix
	consumer, err := broker.NewConsumer(b.Config.Broker, groupID, b.Logger.Named(pipeline))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", pipeline, err)
	}
	consumer.SetServiceName(pipeline)
	b.Consumers[pipeline] = consumer
	return consumer, nil
}

// ShutdownBroker closes consumers before the producer so in-flight handlers
// can still publish.
func (b *Base) ShutdownBroker() error {
	var err error

	for name, consumer := range b.Consumers {
		if closeErr := consumer.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("consumer %s close error: %w", name, closeErr))
		}
	}

	if b.Producer != nil {
		if closeErr := b.Producer.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("producer close error: %w", closeErr))
		}
	}

	return err
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) error) error {
	b.Logger.Info("Shutting down application...")

	err := b.ShutdownBroker()

	if additionalShutdown != nil {
		err = multierr.Append(err, additionalShutdown(ctx))
	}

	if err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
