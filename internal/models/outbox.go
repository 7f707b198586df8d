package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus tracks an outbox message through publication.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types emitted for order mutations.
const (
	EventOrderStatusChanged   = "order_status_changed"
	EventPaymentStatusChanged = "payment_status_changed"
	EventPaymentMethodChanged = "payment_method_changed"
)

// OutboxMessage is a row in the transactional outbox. It is inserted in the
// same transaction as the order mutation and the history entry, then
// published asynchronously.
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// ChangeEvent is the payload published for every order mutation.
type ChangeEvent struct {
	EventType     string     `json:"event_type"`
	EventID       string     `json:"event_id"`
	OrderID       string     `json:"order_id"`
	ChangeType    ChangeType `json:"change_type"`
	PreviousValue string     `json:"previous_value"`
	NewValue      string     `json:"new_value"`
	Reason        string     `json:"reason,omitempty"`
	ChangedBy     Actor      `json:"changed_by"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// NewChangeEvent builds the outbox message for one applied history entry.
// The customer contact rides along so downstream consumers can notify
// without a lookup.
func NewChangeEvent(order *Order, entry *HistoryEntry) (*OutboxMessage, error) {
	var eventType string
	switch entry.Type {
	case ChangeTypePayment:
		eventType = EventPaymentStatusChanged
	case ChangeTypePaymentMethod:
		eventType = EventPaymentMethodChanged
	default:
		eventType = EventOrderStatusChanged
	}

	event := ChangeEvent{
		EventType:     eventType,
		EventID:       GenerateID("evt"),
		OrderID:       order.ID,
		ChangeType:    entry.Type,
		PreviousValue: entry.PreviousValue,
		NewValue:      entry.NewValue,
		Reason:        entry.Reason,
		ChangedBy:     entry.ChangedBy,
		CustomerName:  order.Customer.Name,
		CustomerPhone: order.Customer.Phone,
		OccurredAt:    Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
		Status:        OutboxStatusPending,
	}, nil
}
