package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/boloapp/order-service/pkg/logger"
)

// Producer wraps a sarama synchronous producer.
type Producer struct {
	producer sarama.SyncProducer
	logger   logger.Logger
}

// NewProducer connects a sync producer to the given brokers.
func NewProducer(brokers []string, log logger.Logger) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 500 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &Producer{producer: producer, logger: log}, nil
}

// SendMessage publishes value to topic, keyed for partition affinity.
func (p *Producer) SendMessage(ctx context.Context, topic, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to send message to kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("failed to send message to kafka: %w", err)
	}

	p.logger.Debug("message sent to kafka",
		"topic", topic,
		"key", key,
		"partition", partition,
		"offset", offset)

	return nil
}

// Close closes the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
