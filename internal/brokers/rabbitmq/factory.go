package rabbitmq

import (
	"fmt"

	"rul-pipeline/internal/brokers"
)

func init() {
	brokers.Register("rabbitmq", FromConfig)
}

// FromConfig dials a RabbitMQ broker without a logger.
func FromConfig(config brokers.BrokerConfig) (brokers.Broker, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("rabbitmq broker needs *rabbitmq.Config, got %T", config)
	}
	return NewBroker(cfg, nil)
}
