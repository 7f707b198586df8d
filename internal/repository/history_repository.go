package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/boloapp/order-service/internal/database"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
)

// HistoryRepository is the Postgres history ledger. Rows are inserted once
// and never updated or deleted.
type HistoryRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewHistoryRepository creates the repository.
func NewHistoryRepository(db *database.Database, log logger.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: log}
}

type historyRow struct {
	ID            string         `db:"id"`
	OrderID       string         `db:"order_id"`
	ChangeType    string         `db:"change_type"`
	PreviousValue string         `db:"previous_value"`
	NewValue      string         `db:"new_value"`
	Reason        sql.NullString `db:"reason"`
	ChangedByID   string         `db:"changed_by_id"`
	ChangedByName string         `db:"changed_by_name"`
	ChangedByRole string         `db:"changed_by_role"`
	CreatedAt     sql.NullTime   `db:"created_at"`
}

func (r historyRow) toModel() *models.HistoryEntry {
	e := &models.HistoryEntry{
		ID:            r.ID,
		OrderID:       r.OrderID,
		Type:          models.ChangeType(r.ChangeType),
		PreviousValue: r.PreviousValue,
		NewValue:      r.NewValue,
		Reason:        r.Reason.String,
		ChangedBy: models.Actor{
			ID:   r.ChangedByID,
			Name: r.ChangedByName,
			Role: r.ChangedByRole,
		},
	}
	if r.CreatedAt.Valid {
		e.CreatedAt = r.CreatedAt.Time
	}
	return e
}

const historyInsert = `
	INSERT INTO order_history (
		id, order_id, change_type, previous_value, new_value, reason,
		changed_by_id, changed_by_name, changed_by_role, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Append stamps CreatedAt when unset and inserts the entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = models.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, historyInsert,
		entry.ID,
		entry.OrderID,
		entry.Type,
		entry.PreviousValue,
		entry.NewValue,
		nullString(entry.Reason),
		entry.ChangedBy.ID,
		entry.ChangedBy.Name,
		entry.ChangedBy.Role,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to append history entry", "error", err, "orderID", entry.OrderID)
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return nil
}

// createInTx inserts inside the ApplyChange transaction.
func (r *HistoryRepository) createInTx(ctx context.Context, tx *sqlx.Tx, entry *models.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, historyInsert,
		entry.ID,
		entry.OrderID,
		entry.Type,
		entry.PreviousValue,
		entry.NewValue,
		nullString(entry.Reason),
		entry.ChangedBy.ID,
		entry.ChangedBy.Name,
		entry.ChangedBy.Role,
		entry.CreatedAt,
	)
	return err
}

// ListByOrder returns the order's entries oldest-first, optionally narrowed
// to one change type.
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID string, typeFilter models.ChangeType) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, order_id, change_type, previous_value, new_value, reason,
			changed_by_id, changed_by_name, changed_by_role, created_at
		FROM order_history
		WHERE order_id = $1
	`
	args := []interface{}{orderID}

	if typeFilter != "" {
		query += " AND change_type = $2"
		args = append(args, typeFilter)
	}
	query += " ORDER BY created_at ASC, id ASC"

	var rows []historyRow
	if err := r.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list order history", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	entries := make([]*models.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toModel())
	}
	return entries, nil
}
