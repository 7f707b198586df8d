// Package store defines the persistence boundary for the order registry and
// history ledger. Implementations must not be assumed in-process: the
// Postgres implementation lives in internal/repository and an in-memory one
// in internal/store/memory.
package store

import (
	"context"
	"errors"

	"github.com/boloapp/order-service/internal/models"
)

var (
	// ErrNotFound: no record with the given id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict: the expected previous value no longer matches the stored
	// row; a concurrent change won.
	ErrConflict = errors.New("concurrent change detected")
	// ErrHistoryAppend: the history insert inside ApplyChange failed. The
	// whole change is rolled back, but callers must surface this class
	// distinctly: it means the audit trail could not be written.
	ErrHistoryAppend = errors.New("history append failed")
	// ErrStorage: any other storage failure.
	ErrStorage = errors.New("storage error")
)

// OrderStore is the order registry's persistence collaborator.
type OrderStore interface {
	// List returns orders matching the filters, ordered by created_at then
	// id ascending.
	List(ctx context.Context, filters models.OrderFilters) ([]*models.Order, error)
	// GetByID returns ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// Create inserts a new order. Used by seeding and tests; the admin flow
	// never creates orders.
	Create(ctx context.Context, order *models.Order) error
	// ApplyChange atomically updates the field named by entry.Type to
	// entry.NewValue, stamps updated_at, appends the history entry and
	// inserts the outbox message. The stored field must still equal
	// entry.PreviousValue or ErrConflict is returned and nothing changes.
	// order carries the post-change state to persist.
	ApplyChange(ctx context.Context, order *models.Order, entry *models.HistoryEntry, msg *models.OutboxMessage) error
}

// HistoryStore is the append-only ledger.
type HistoryStore interface {
	// Append stamps CreatedAt and stores the entry. Only seeding and the
	// memory store use this directly; mutations go through ApplyChange.
	Append(ctx context.Context, entry *models.HistoryEntry) error
	// ListByOrder returns the order's entries oldest-first, optionally
	// narrowed to one change type (empty means all).
	ListByOrder(ctx context.Context, orderID string, typeFilter models.ChangeType) ([]*models.HistoryEntry, error)
}

// OutboxStore feeds the outbox processor.
type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64) error
	// MarkRetry records the error and returns the message to pending so the
	// next poll picks it up again.
	MarkRetry(ctx context.Context, id int64, errorMessage string) error
	// MarkFailed is terminal.
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
}

// DeadLetterStore holds messages whose publication exhausted retries.
type DeadLetterStore interface {
	Create(ctx context.Context, msg *models.DeadLetterMessage) error
	List(ctx context.Context, status string, limit, offset int) ([]*models.DeadLetterMessage, error)
	GetByID(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	GetRetryable(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error)
	MarkRetrying(ctx context.Context, id int64) error
	MarkResolved(ctx context.Context, id int64) error
	MarkDiscarded(ctx context.Context, id int64) error
}
