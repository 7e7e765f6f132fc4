package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaConsumer consumes raw telemetry frames from a Kafka topic as part of
// a consumer group, as an alternative to the AMQP source.
type KafkaConsumer struct {
	brokers  []string
	groupID  string
	topic    string
	ingestor *Ingestor
	logger   *zap.Logger

	group sarama.ConsumerGroup
}

// NewKafkaConsumer builds consumer.
func NewKafkaConsumer(brokers []string, groupID, topic string, ingestor *Ingestor, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		brokers:  brokers,
		groupID:  groupID,
		topic:    topic,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start joins the consumer group and consumes until ctx is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.brokers, c.groupID, cfg)
	if err != nil {
		return fmt.Errorf("kafka consumer group: %w", err)
	}
	c.group = group

	go func() {
		for err := range group.Errors() {
			c.logger.Warn("kafka consumer error", zap.Error(err))
		}
	}()

	c.logger.Info("kafka consumer started",
		zap.Strings("brokers", c.brokers),
		zap.String("topic", c.topic),
		zap.String("group", c.groupID))

	handler := &groupHandler{ingestor: c.ingestor}
	for {
		if err := group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("kafka consume: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Stop leaves the consumer group.
func (c *KafkaConsumer) Stop() error {
	if c.group != nil {
		return c.group.Close()
	}
	return nil
}

type groupHandler struct {
	ingestor *Ingestor
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		receivedAt := message.Timestamp
		if receivedAt.IsZero() {
			receivedAt = time.Now().UTC()
		}
		h.ingestor.Ingest(message.Value, receivedAt)
		session.MarkMessage(message, "")
	}
	return nil
}
