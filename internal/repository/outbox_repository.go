package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/boloapp/order-service/internal/database"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
)

// OutboxRepository is the Postgres outbox store.
type OutboxRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOutboxRepository creates the repository.
func NewOutboxRepository(db *database.Database, log logger.Logger) *OutboxRepository {
	return &OutboxRepository{db: db, logger: log}
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, last_error, status`

const outboxInsert = `
	INSERT INTO outbox_messages (
		aggregate_type, aggregate_id, event_type, payload, created_at, status
	) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
`

// createInTx inserts inside the ApplyChange transaction and fills in the
// generated id.
func (r *OutboxRepository) createInTx(ctx context.Context, tx *sqlx.Tx, msg *models.OutboxMessage) error {
	return tx.QueryRowContext(ctx, outboxInsert,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.CreatedAt,
		msg.Status,
	).Scan(&msg.ID)
}

// GetPendingMessages returns up to limit pending messages oldest-first.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var messages []*models.OutboxMessage
	err := r.db.DB.SelectContext(ctx, &messages, query, models.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return messages, nil
}

// GetMessage returns one message or store.ErrNotFound.
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_messages WHERE id = $1`

	var msg models.OutboxMessage
	err := r.db.DB.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		r.logger.Error("failed to get outbox message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return &msg, nil
}

// MarkProcessing bumps the attempt counter and flags the message.
func (r *OutboxRepository) MarkProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2
	`
	return r.exec(ctx, query, models.OutboxStatusProcessing, id)
}

// MarkCompleted stamps processed_at.
func (r *OutboxRepository) MarkCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3
	`
	return r.exec(ctx, query, models.OutboxStatusCompleted, models.Now(), id)
}

// MarkRetry records the error and returns the message to pending.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`
	return r.exec(ctx, query, models.OutboxStatusPending, errorMessage, id)
}

// MarkFailed records the final error.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`
	return r.exec(ctx, query, models.OutboxStatusFailed, errorMessage, id)
}

func (r *OutboxRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := r.db.DB.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("outbox update failed", "error", err)
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}
	return nil
}
