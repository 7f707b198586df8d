package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/boloapp/order-service/internal/database"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
)

// OrderRepository is the Postgres order store.
type OrderRepository struct {
	db      *database.Database
	history *HistoryRepository
	outbox  *OutboxRepository
	logger  logger.Logger
}

// NewOrderRepository creates the repository. history and outbox are needed
// because ApplyChange writes all three tables in one transaction.
func NewOrderRepository(db *database.Database, history *HistoryRepository, outbox *OutboxRepository, log logger.Logger) *OrderRepository {
	return &OrderRepository{db: db, history: history, outbox: outbox, logger: log}
}

// orderRow is the flat scan target; the nested model is rebuilt from it.
type orderRow struct {
	ID            string                   `db:"id"`
	PromotionID   string                   `db:"promotion_id"`
	Promotion     models.PromotionSnapshot `db:"promotion"`
	CustomerName  string                   `db:"customer_name"`
	CustomerPhone string                   `db:"customer_phone"`
	CustomerEmail sql.NullString           `db:"customer_email"`
	Quantity      int                      `db:"quantity"`
	TotalAmount   float64                  `db:"total_amount"`
	PaymentMethod string                   `db:"payment_method"`
	PaymentStatus string                   `db:"payment_status"`
	OrderStatus   string                   `db:"order_status"`
	CreatedAt     sql.NullTime             `db:"created_at"`
	UpdatedAt     sql.NullTime             `db:"updated_at"`
}

func (r orderRow) toModel() *models.Order {
	o := &models.Order{
		ID:          r.ID,
		PromotionID: r.PromotionID,
		Promotion:   r.Promotion,
		Customer: models.Customer{
			Name:  r.CustomerName,
			Phone: r.CustomerPhone,
			Email: r.CustomerEmail.String,
		},
		Quantity:      r.Quantity,
		TotalAmount:   r.TotalAmount,
		PaymentMethod: models.PaymentMethod(r.PaymentMethod),
		PaymentStatus: models.PaymentStatus(r.PaymentStatus),
		OrderStatus:   models.OrderStatus(r.OrderStatus),
	}
	if r.CreatedAt.Valid {
		o.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		o.UpdatedAt = r.UpdatedAt.Time
	}
	return o
}

const orderColumns = `id, promotion_id, promotion, customer_name, customer_phone,
	customer_email, quantity, total_amount, payment_method, payment_status,
	order_status, created_at, updated_at`

// Create inserts a validated order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		order.ID,
		order.PromotionID,
		order.Promotion,
		order.Customer.Name,
		order.Customer.Phone,
		nullString(order.Customer.Email),
		order.Quantity,
		order.TotalAmount,
		order.PaymentMethod,
		order.PaymentStatus,
		order.OrderStatus,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create order", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return nil
}

// GetByID returns one order or store.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var row orderRow
	err := r.db.DB.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		r.logger.Error("failed to get order", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	return row.toModel(), nil
}

// List returns matching orders ordered by created_at then id ascending. The
// WHERE clause is built only from the fully-enumerated filter struct.
func (r *OrderRepository) List(ctx context.Context, filters models.OrderFilters) ([]*models.Order, error) {
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != "" {
		conditions = append(conditions, "order_status = "+arg(filters.Status))
	}
	if filters.PaymentStatus != "" {
		conditions = append(conditions, "payment_status = "+arg(filters.PaymentStatus))
	}
	if filters.PaymentMethod != "" {
		conditions = append(conditions, "payment_method = "+arg(filters.PaymentMethod))
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		p := arg(pattern)
		conditions = append(conditions, fmt.Sprintf(
			"(customer_name ILIKE %s OR customer_phone ILIKE %s OR id ILIKE %s)", p, p, p))
	}
	if filters.StartDate != nil {
		conditions = append(conditions, "created_at >= "+arg(*filters.StartDate))
	}
	if filters.EndDate != nil {
		conditions = append(conditions, "created_at <= "+arg(*filters.EndDate))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	var rows []orderRow
	if err := r.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list orders", "error", err)
		return nil, fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	orders := make([]*models.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toModel())
	}
	return orders, nil
}

// columnForChange maps a change type to the mutated column.
func columnForChange(t models.ChangeType) (string, error) {
	switch t {
	case models.ChangeTypeStatus:
		return "order_status", nil
	case models.ChangeTypePayment:
		return "payment_status", nil
	case models.ChangeTypePaymentMethod:
		return "payment_method", nil
	default:
		return "", fmt.Errorf("unknown change type %q", t)
	}
}

// ApplyChange commits the mutation, the history entry and the outbox message
// in a single transaction. The row is locked and re-checked against the
// entry's previous value, so concurrent admins cannot silently overwrite
// each other.
func (r *OrderRepository) ApplyChange(ctx context.Context, order *models.Order, entry *models.HistoryEntry, msg *models.OutboxMessage) error {
	column, err := columnForChange(entry.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	tx, err := r.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("failed to roll back transaction", "error", rbErr, "orderID", order.ID)
			}
		}
	}()

	var stored string
	lockQuery := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 FOR UPDATE`, column)
	err = tx.GetContext(ctx, &stored, lockQuery, order.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
			return err
		}
		err = fmt.Errorf("%w: %v", store.ErrStorage, err)
		return err
	}

	if stored != entry.PreviousValue {
		err = store.ErrConflict
		return err
	}

	updateQuery := fmt.Sprintf(`UPDATE orders SET %s = $1, updated_at = $2 WHERE id = $3`, column)
	if _, err = tx.ExecContext(ctx, updateQuery, entry.NewValue, order.UpdatedAt, order.ID); err != nil {
		err = fmt.Errorf("%w: %v", store.ErrStorage, err)
		return err
	}

	entry.CreatedAt = models.Now()
	if err = r.history.createInTx(ctx, tx, entry); err != nil {
		// Distinct class: the mutation is rolled back, but the caller must
		// know the audit trail was the failing piece.
		err = fmt.Errorf("%w: %v", store.ErrHistoryAppend, err)
		return err
	}

	if msg != nil {
		if err = r.outbox.createInTx(ctx, tx, msg); err != nil {
			err = fmt.Errorf("%w: %v", store.ErrStorage, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("%w: %v", store.ErrStorage, err)
		return err
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
