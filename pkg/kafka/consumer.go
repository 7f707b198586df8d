package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/boloapp/order-service/pkg/logger"
)

// MessageHandler processes one consumed message. Returning an error leaves
// the message unmarked so the group redelivers it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerConfig configures a consumer group.
type ConsumerConfig struct {
	Brokers       []string
	Topics        []string
	ConsumerGroup string
}

// Consumer wraps a sarama consumer group with per-topic handlers.
type Consumer struct {
	group    sarama.ConsumerGroup
	topics   []string
	handlers map[string]MessageHandler
	logger   logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewConsumer joins the configured consumer group.
func NewConsumer(cfg *ConsumerConfig, log logger.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		group:    group,
		topics:   cfg.Topics,
		handlers: make(map[string]MessageHandler),
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// RegisterHandler attaches a handler to a topic. Must be called before Start.
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = handler
}

// Start begins consuming in the background, rejoining the group on errors
// until stopped.
func (c *Consumer) Start() error {
	if len(c.topics) == 0 {
		return fmt.Errorf("no topics to consume")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(c.ctx, c.topics, c); err != nil {
				c.logger.Error("kafka consumer error", "error", err)
			}
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Info("rejoining consumer group")
		}
	}()

	c.logger.Info("kafka consumer started", "topics", c.topics)
	return nil
}

// Stop leaves the group and waits for the consume loop to finish.
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim dispatches messages to the registered topic handler.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			handler, exists := c.handlers[msg.Topic]
			if !exists {
				c.logger.Warn("no handler registered for topic", "topic", msg.Topic)
				session.MarkMessage(msg, "")
				continue
			}

			if err := handler.HandleMessage(session.Context(), msg); err != nil {
				c.logger.Error("error handling message",
					"error", err,
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset)
				// Left unmarked so the group redelivers it.
				continue
			}

			session.MarkMessage(msg, "")

		case <-session.Context().Done():
			return nil
		case <-c.ctx.Done():
			return nil
		}
	}
}
