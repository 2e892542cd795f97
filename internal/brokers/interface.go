// Package brokers publishes pipeline verdicts to message brokers so that
// downstream consumers (deployment jobs, dashboards) can react to a run
// without polling the artifact directory.
package brokers

import (
	"context"
	"time"

	"rul-pipeline/internal/common/registry"
)

// Broker delivers messages to one broker connection.
type Broker interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	Health() error
	Close() error
}

// BrokerConfig is implemented by each broker's configuration.
type BrokerConfig interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}

// Message is one outgoing payload. Topic is the Redis stream or the
// RabbitMQ queue name.
type Message struct {
	Topic     string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	MessageID string
}

// BrokerFactory connects a broker from its configuration.
type BrokerFactory = registry.Factory[BrokerConfig, Broker]
