package outbox

import (
	"context"
	"fmt"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/pkg/kafka"
	"github.com/boloapp/order-service/pkg/logger"
)

// KafkaHandler publishes outbox messages to Kafka. Each event type gets its
// own topic; the order id is the partition key so one order's events stay
// ordered.
type KafkaHandler struct {
	producer *kafka.Producer
	topic    string
	logger   logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler for one topic.
func NewKafkaHandler(producer *kafka.Producer, topic string, log logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   log,
	}
}

// HandleMessage publishes the message payload to the handler's topic.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	key := message.AggregateID

	err := h.producer.SendMessage(ctx, h.topic, key, message.Payload)
	if err != nil {
		h.logger.Error("failed to publish message to kafka",
			"error", err,
			"topic", h.topic,
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("failed to publish message to kafka: %w", err)
	}

	h.logger.Debug("published message to kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	return nil
}
