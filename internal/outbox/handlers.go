package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/pkg/logger"
)

// LoggingHandler writes the event to the log instead of a broker. Used when
// Kafka is disabled (local development, tests).
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler.
func NewLoggingHandler(log logger.Logger) *LoggingHandler {
	return &LoggingHandler{logger: log}
}

// HandleMessage logs the decoded change event.
func (h *LoggingHandler) HandleMessage(_ context.Context, message *models.OutboxMessage) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	h.logger.Info("order change event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"orderID", event.OrderID,
		"from", event.PreviousValue,
		"to", event.NewValue,
		"changedBy", event.ChangedBy.ID,
		"occurredAt", event.OccurredAt)

	return nil
}
