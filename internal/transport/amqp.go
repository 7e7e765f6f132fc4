package transport

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPConsumer consumes raw telemetry frames from a RabbitMQ queue, the way
// a Traccar forwarder publishes device positions.
type AMQPConsumer struct {
	url      string
	queue    string
	ingestor *Ingestor
	logger   *zap.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPConsumer builds consumer.
func NewAMQPConsumer(url, queue string, ingestor *Ingestor, logger *zap.Logger) *AMQPConsumer {
	return &AMQPConsumer{
		url:      url,
		queue:    queue,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start connects, declares the queue and consumes until ctx is cancelled or
// the broker closes the channel.
func (c *AMQPConsumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	c.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	c.channel = channel

	if _, err := channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		c.Stop()
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	if err := channel.Qos(64, 0, false); err != nil {
		c.Stop()
		return fmt.Errorf("amqp qos: %w", err)
	}

	deliveries, err := channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		c.Stop()
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("amqp consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp deliveries channel closed")
			}
			c.ingestor.Ingest(delivery.Body, time.Now().UTC())
			if err := delivery.Ack(false); err != nil {
				c.logger.Warn("amqp ack failed", zap.Error(err))
			}
		}
	}
}

// Stop closes channel and connection.
func (c *AMQPConsumer) Stop() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
