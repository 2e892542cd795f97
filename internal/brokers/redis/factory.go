package redis

import (
	"fmt"

	"rul-pipeline/internal/brokers"
)

func init() {
	brokers.Register("redis", FromConfig)
}

// FromConfig connects a Redis broker. The registry has already validated
// config.
func FromConfig(config brokers.BrokerConfig) (brokers.Broker, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("redis broker needs *redis.Config, got %T", config)
	}
	return NewBroker(cfg)
}
