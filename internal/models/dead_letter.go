package models

import (
	"time"
)

// DeadLetterStatus tracks a dead-lettered message through resolution.
type DeadLetterStatus string

const (
	DeadLetterStatusPending   DeadLetterStatus = "pending"
	DeadLetterStatusRetrying  DeadLetterStatus = "retrying"
	DeadLetterStatusResolved  DeadLetterStatus = "resolved"
	DeadLetterStatusDiscarded DeadLetterStatus = "discarded"
)

// DeadLetterMessage is an order event whose publication exhausted its
// retries. It stays queryable until an operator retries or discards it.
type DeadLetterMessage struct {
	ID                int64      `db:"id" json:"id"`
	OriginalMessageID int64      `db:"original_message_id" json:"original_message_id"`
	AggregateType     string     `db:"aggregate_type" json:"aggregate_type"`
	AggregateID       string     `db:"aggregate_id" json:"aggregate_id"`
	EventType         string     `db:"event_type" json:"event_type"`
	Payload           []byte     `db:"payload" json:"payload"`
	ErrorMessage      string     `db:"error_message" json:"error_message"`
	RetryCount        int        `db:"retry_count" json:"retry_count"`
	LastRetryAt       *time.Time `db:"last_retry_at" json:"last_retry_at,omitempty"`
	Status            string     `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt        *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// NewDeadLetterMessage moves an exhausted outbox message to the DLQ.
func NewDeadLetterMessage(msg *OutboxMessage, errorMsg string) *DeadLetterMessage {
	return &DeadLetterMessage{
		OriginalMessageID: msg.ID,
		AggregateType:     msg.AggregateType,
		AggregateID:       msg.AggregateID,
		EventType:         msg.EventType,
		Payload:           msg.Payload,
		ErrorMessage:      errorMsg,
		Status:            string(DeadLetterStatusPending),
		CreatedAt:         Now(),
	}
}
