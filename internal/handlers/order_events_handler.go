package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/boloapp/order-service/internal/clients"
	"github.com/boloapp/order-service/internal/models"
	apperrors "github.com/boloapp/order-service/pkg/errors"
	"github.com/boloapp/order-service/pkg/logger"
)

// OrderEventsHandler consumes order change events from Kafka and notifies
// the customer about the ones they care about. Notification failures are
// logged, not propagated: a dead notifier must not stall the consumer group.
type OrderEventsHandler struct {
	notifier *clients.NotifierClient
	logger   logger.Logger
}

// NewOrderEventsHandler creates a new OrderEventsHandler. notifier may be
// nil, which degrades to log-only delivery.
func NewOrderEventsHandler(notifier *clients.NotifierClient, log logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		notifier: notifier,
		logger:   log,
	}
}

// HandleMessage handles one consumed Kafka message.
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal order event", "error", err, "topic", msg.Topic)
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	h.logger.Info("handling order event",
		"eventType", event.EventType,
		"eventID", event.EventID,
		"orderID", event.OrderID,
		"from", event.PreviousValue,
		"to", event.NewValue)

	switch event.EventType {
	case models.EventOrderStatusChanged:
		return h.handleOrderStatusChanged(ctx, event)
	case models.EventPaymentStatusChanged:
		return h.handlePaymentStatusChanged(ctx, event)
	case models.EventPaymentMethodChanged:
		// Method changes are internal bookkeeping, nothing to tell the
		// customer.
		return nil
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType)
		return nil
	}
}

func (h *OrderEventsHandler) handleOrderStatusChanged(ctx context.Context, event models.ChangeEvent) error {
	var message string
	switch models.OrderStatus(event.NewValue) {
	case models.OrderStatusConfirmed:
		message = fmt.Sprintf("Votre commande %s a été confirmée.", event.OrderID)
	case models.OrderStatusProcessing:
		message = fmt.Sprintf("Votre commande %s est en préparation.", event.OrderID)
	case models.OrderStatusDelivered:
		message = fmt.Sprintf("Votre commande %s a été livrée. Merci !", event.OrderID)
	case models.OrderStatusCancelled:
		message = fmt.Sprintf("Votre commande %s a été annulée.", event.OrderID)
	default:
		return nil
	}

	h.notify(ctx, event, message)
	return nil
}

func (h *OrderEventsHandler) handlePaymentStatusChanged(ctx context.Context, event models.ChangeEvent) error {
	var message string
	switch models.PaymentStatus(event.NewValue) {
	case models.PaymentStatusPaid:
		message = fmt.Sprintf("Paiement reçu pour la commande %s.", event.OrderID)
	case models.PaymentStatusFailed:
		message = fmt.Sprintf("Le paiement de la commande %s a échoué. Veuillez réessayer.", event.OrderID)
	default:
		return nil
	}

	h.notify(ctx, event, message)
	return nil
}

func (h *OrderEventsHandler) notify(ctx context.Context, event models.ChangeEvent, message string) {
	if h.notifier == nil || event.CustomerPhone == "" {
		h.logger.Info("notification (log only)",
			"orderID", event.OrderID,
			"customer", event.CustomerName,
			"message", message)
		return
	}

	_, err := h.notifier.SendNotification(ctx, &clients.NotificationRequest{
		OrderID:       event.OrderID,
		CustomerName:  event.CustomerName,
		CustomerPhone: event.CustomerPhone,
		Message:       message,
	})
	if err != nil {
		// Fall back to the log; the event itself is already committed.
		h.logger.Warn("notification delivery failed, logged instead",
			"error", err,
			"orderID", event.OrderID,
			"retryable", apperrors.IsRetryable(err),
			"message", message)
	}
}
