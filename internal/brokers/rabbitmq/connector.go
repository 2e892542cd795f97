package rabbitmq

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"rul-pipeline/internal/common/logging"
)

// Channel is the subset of *amqp.Channel the broker uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connector hands out channels on a shared connection.
type Connector interface {
	Channel() (Channel, error)
	Close() error
}

// connector keeps one AMQP connection and redials it when the server
// closes it. Each publish gets its own short-lived channel.
type connector struct {
	url    string
	config amqp.Config
	logger logging.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// dial connects to the broker described by cfg.
func dial(cfg *Config, logger logging.Logger) (*connector, error) {
	c := &connector{
		url: cfg.URL,
		config: amqp.Config{
			Heartbeat: cfg.Heartbeat,
			Dial:      amqp.DefaultDial(cfg.DialTimeout),
		},
		logger: logger,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect must be called with mu held or before c is shared.
func (c *connector) connect() error {
	conn, err := amqp.DialConfig(c.url, c.config)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *connector) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("connection is closed")
	}
	if c.conn == nil || c.conn.IsClosed() {
		c.logger.Debug("Reconnecting to RabbitMQ")
		if err := c.connect(); err != nil {
			return nil, err
		}
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

func (c *connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

var _ Connector = (*connector)(nil)
var _ Channel = (*amqp.Channel)(nil)
