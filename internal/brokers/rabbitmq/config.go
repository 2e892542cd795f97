package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"rul-pipeline/internal/common/validation"
)

type Config struct {
	URL         string        `json:"url" validate:"required,url"`
	DialTimeout time.Duration `json:"dial_timeout" validate:"min=0"`
	Heartbeat   time.Duration `json:"heartbeat" validate:"min=0"`
}

// Validate applies defaults and checks that URL is an AMQP URI.
func (c *Config) Validate() error {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = 10 * time.Second
	}

	if err := validation.NewStructValidator().Struct(c); err != nil {
		return err
	}
	if _, err := amqp.ParseURI(c.URL); err != nil {
		return fmt.Errorf("invalid RabbitMQ URL: %w", err)
	}
	return nil
}

// GetConnectionString strips credentials and vhost.
func (c *Config) GetConnectionString() string {
	uri, err := amqp.ParseURI(c.URL)
	if err != nil {
		return "rabbitmq://***"
	}
	return fmt.Sprintf("rabbitmq://%s:%d", uri.Host, uri.Port)
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
