package broker

import (
	"fmt"

	"pizzastream/internal/config"
	"pizzastream/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "", "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// NewConsumer returns a consumer in its own consumer group. Each pipeline
// commits its offsets independently.
func NewConsumer(cfg config.BrokerConfig, groupID string, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "", "kafka":
		return NewKafkaConsumer(cfg.Kafka, groupID, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
