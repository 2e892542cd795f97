// Package rabbitmq publishes verdicts to durable RabbitMQ queues.
package rabbitmq

import (
	"context"
	"sync"

	"github.com/streadway/amqp"
	"rul-pipeline/internal/brokers"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
)

// DefaultQueue receives messages that name no topic.
const DefaultQueue = "rul.verdicts"

// Broker implements brokers.Broker over one AMQP connection.
type Broker struct {
	config *Config
	logger logging.Logger

	mu   sync.RWMutex
	conn Connector
}

// NewBroker validates the configuration and connects.
func NewBroker(config *Config, logger logging.Logger) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	conn, err := dial(config, logger.WithFields(logging.String("broker", "rabbitmq")))
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to RabbitMQ", err).
			WithContext("url", config.GetConnectionString())
	}
	return NewBrokerWithConnector(config, conn, logger)
}

// NewBrokerWithConnector creates a broker over an existing connector.
func NewBrokerWithConnector(config *Config, conn Connector, logger logging.Logger) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Broker{
		config: config,
		logger: logger.WithFields(logging.String("broker", "rabbitmq")),
		conn:   conn,
	}, nil
}

func (b *Broker) Name() string {
	return "rabbitmq"
}

// Publish declares the durable queue named by the topic and sends a
// persistent message to it through the default exchange.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := b.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queue := message.Topic
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return errors.InternalError("failed to declare RabbitMQ queue", err).WithContext("queue", queue)
	}

	headers := amqp.Table{}
	for key, value := range message.Headers {
		headers[key] = value
	}

	err = ch.Publish("", queue, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Body:         message.Body,
	})
	if err != nil {
		return errors.InternalError("failed to publish message to RabbitMQ", err).WithContext("queue", queue)
	}

	b.logger.Debug("Message published", logging.String("queue", queue))
	return nil
}

// Health opens and closes a channel.
func (b *Broker) Health() error {
	ch, err := b.channel()
	if err != nil {
		return err
	}
	return ch.Close()
}

// Close closes the connection. Later calls are no-ops.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *Broker) channel() (Channel, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return nil, errors.ConnectionError("RabbitMQ broker not connected", nil)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}
	return ch, nil
}
