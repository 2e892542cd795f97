// Package redis publishes verdicts to Redis Streams.
package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
	"rul-pipeline/internal/brokers"
	"rul-pipeline/internal/common/errors"
)

// DefaultStream receives messages that name no topic.
const DefaultStream = "rul.verdicts"

// Broker implements brokers.Broker on Redis Streams.
type Broker struct {
	client *redis.Client
	config *Config
}

// NewBroker validates the configuration and connects to Redis.
func NewBroker(config *Config) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to Redis", err).
			WithContext("address", config.GetConnectionString())
	}

	return &Broker{client: client, config: config}, nil
}

func (b *Broker) Name() string {
	return "redis"
}

// Publish appends the message to its stream with XADD.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.client == nil {
		return errors.ConnectionError("Redis broker not connected", nil)
	}

	stream := message.Topic
	if stream == "" {
		stream = DefaultStream
	}

	fields := map[string]interface{}{
		"body":       string(message.Body),
		"timestamp":  message.Timestamp.UnixNano(),
		"message_id": message.MessageID,
	}
	for key, value := range message.Headers {
		fields["header_"+key] = value
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: fields,
	}
	if b.config.StreamMaxLen > 0 {
		args.MaxLen = b.config.StreamMaxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return errors.InternalError("failed to publish message to Redis stream", err).
			WithContext("stream", stream)
	}
	return nil
}

// Health sends a PING.
func (b *Broker) Health() error {
	if b.client == nil {
		return errors.ConnectionError("Redis broker not connected", nil)
	}
	return b.client.Ping(context.Background()).Err()
}

// Close releases the client.
func (b *Broker) Close() error {
	if b.client != nil {
		err := b.client.Close()
		b.client = nil
		return err
	}
	return nil
}
