package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boloapp/order-service/internal/database"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
)

// DeadLetterRepository is the Postgres dead-letter store.
type DeadLetterRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewDeadLetterRepository creates the repository.
func NewDeadLetterRepository(db *database.Database, log logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{db: db, logger: log}
}

const deadLetterColumns = `id, original_message_id, aggregate_type, aggregate_id,
	event_type, payload, error_message, retry_count, last_retry_at, status,
	created_at, resolved_at`

// Create inserts a dead letter and fills in the generated id.
func (r *DeadLetterRepository) Create(ctx context.Context, msg *models.DeadLetterMessage) error {
	query := `
		INSERT INTO dead_letters (
			original_message_id, aggregate_type, aggregate_id, event_type,
			payload, error_message, retry_count, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id
	`

	err := r.db.DB.QueryRowContext(ctx, query,
		msg.OriginalMessageID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.ErrorMessage,
		msg.RetryCount,
		msg.Status,
		msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		r.logger.Error("failed to create dead letter", "error", err, "aggregateID", msg.AggregateID)
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return nil
}

// List returns dead letters, optionally filtered by status, newest first.
func (r *DeadLetterRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letters`
	var args []interface{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var messages []*models.DeadLetterMessage
	if err := r.db.DB.SelectContext(ctx, &messages, query, args...); err != nil {
		r.logger.Error("failed to list dead letters", "error", err)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return messages, nil
}

// GetByID returns one dead letter or store.ErrNotFound.
func (r *DeadLetterRepository) GetByID(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letters WHERE id = $1`

	var msg models.DeadLetterMessage
	err := r.db.DB.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return &msg, nil
}

// GetRetryable returns messages eligible for a background retry.
func (r *DeadLetterRepository) GetRetryable(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	query := `
		SELECT ` + deadLetterColumns + `
		FROM dead_letters
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3
	`

	var messages []*models.DeadLetterMessage
	err := r.db.DB.SelectContext(ctx, &messages, query,
		models.DeadLetterStatusPending, models.DeadLetterStatusRetrying, limit)
	if err != nil {
		r.logger.Error("failed to get retryable dead letters", "error", err)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return messages, nil
}

// MarkRetrying bumps the retry counter.
func (r *DeadLetterRepository) MarkRetrying(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letters
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2
		WHERE id = $3
	`
	return r.exec(ctx, query, models.DeadLetterStatusRetrying, models.Now(), id)
}

// MarkResolved stamps resolved_at.
func (r *DeadLetterRepository) MarkResolved(ctx context.Context, id int64) error {
	query := `UPDATE dead_letters SET status = $1, resolved_at = $2 WHERE id = $3`
	return r.exec(ctx, query, models.DeadLetterStatusResolved, models.Now(), id)
}

// MarkDiscarded stamps resolved_at without republishing.
func (r *DeadLetterRepository) MarkDiscarded(ctx context.Context, id int64) error {
	query := `UPDATE dead_letters SET status = $1, resolved_at = $2 WHERE id = $3`
	return r.exec(ctx, query, models.DeadLetterStatusDiscarded, models.Now(), id)
}

func (r *DeadLetterRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := r.db.DB.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("dead letter update failed", "error", err)
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}
	return nil
}
