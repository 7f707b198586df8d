package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/boloapp/order-service/internal/actor"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	apperrors "github.com/boloapp/order-service/pkg/errors"
	"github.com/boloapp/order-service/pkg/logger"
)

// OrderService orchestrates order mutations: it validates the requested
// change, resolves the acting identity, and commits the mutation together
// with its history entry and outbox event. No caller can mutate an order
// without leaving an audit record.
type OrderService struct {
	orders  store.OrderStore
	history store.HistoryStore
	actors  actor.Provider
	logger  logger.Logger
	// strictTransitions enforces the lifecycle tables. Off restores the
	// legacy any-to-any behavior pending product clarification.
	strictTransitions bool
}

// NewOrderService creates the service.
func NewOrderService(orders store.OrderStore, history store.HistoryStore, actors actor.Provider, strictTransitions bool, log logger.Logger) *OrderService {
	return &OrderService{
		orders:            orders,
		history:           history,
		actors:            actors,
		logger:            log,
		strictTransitions: strictTransitions,
	}
}

// GetOrder returns one order by id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.classifyRead(err, id)
	}
	return order, nil
}

// ListOrders returns orders matching the filters.
func (s *OrderService) ListOrders(ctx context.Context, filters models.OrderFilters) ([]*models.Order, error) {
	orders, err := s.orders.List(ctx, filters)
	if err != nil {
		return nil, apperrors.NewMutation("failed to list orders").WithContext("cause", err.Error())
	}
	return orders, nil
}

// GetOrderHistory returns the order's change log oldest-first, optionally
// narrowed to one change type. The order must exist.
func (s *OrderService) GetOrderHistory(ctx context.Context, orderID string, typeFilter models.ChangeType) ([]*models.HistoryEntry, error) {
	if typeFilter != "" && !models.ValidChangeType(string(typeFilter)) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown change type %q", typeFilter))
	}

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, s.classifyRead(err, orderID)
	}

	entries, err := s.history.ListByOrder(ctx, orderID, typeFilter)
	if err != nil {
		return nil, apperrors.NewMutation("failed to read order history").
			WithContext("orderID", orderID).
			WithContext("cause", err.Error())
	}
	return entries, nil
}

// UpdateOrderStatus moves the order to a new fulfilment status. A reason is
// mandatory when cancelling.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, newStatus, reason string) (*models.Order, error) {
	if !models.ValidOrderStatus(newStatus) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown order status %q", newStatus))
	}

	return s.mutate(ctx, id, models.ChangeTypeStatus, newStatus, reason)
}

// UpdatePaymentStatus moves the order to a new payment status. A reason is
// mandatory when marking the payment failed.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id, newStatus, reason string) (*models.Order, error) {
	if !models.ValidPaymentStatus(newStatus) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown payment status %q", newStatus))
	}

	return s.mutate(ctx, id, models.ChangeTypePayment, newStatus, reason)
}

// UpdatePaymentMethod switches how the customer pays. Method changes always
// require a reason.
func (s *OrderService) UpdatePaymentMethod(ctx context.Context, id, newMethod, reason string) (*models.Order, error) {
	if !models.ValidPaymentMethod(newMethod) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown payment method %q", newMethod))
	}

	return s.mutate(ctx, id, models.ChangeTypePaymentMethod, newMethod, reason)
}

// mutate is the shared mutation path. Validation happens strictly before
// any store call: an invalid request leaves no trace in either the order
// registry or the history ledger.
func (s *OrderService) mutate(ctx context.Context, id string, changeType models.ChangeType, newValue, reason string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.classifyRead(err, id)
	}

	previous := currentValue(order, changeType)

	// The reason policy applies to the requested change as such, before the
	// same-value short-circuit: asking to fail a payment or switch the
	// method without a reason is rejected even when the value would not
	// move.
	if models.ReasonRequired(changeType, newValue) && reason == "" {
		return nil, apperrors.NewValidation(reasonRequiredMessage(changeType, newValue)).
			WithContext("orderID", id)
	}

	if previous == newValue {
		// Nothing to change: no history entry, updated_at untouched.
		return order, nil
	}

	if err := s.checkTransition(changeType, previous, newValue); err != nil {
		return nil, err
	}

	changedBy := s.actors.Resolve(ctx)

	updated := order.Clone()
	applyValue(updated, changeType, newValue)
	updated.UpdatedAt = models.Now()

	entry := models.NewHistoryEntry(id, changeType, previous, newValue, reason, changedBy)

	msg, err := models.NewChangeEvent(updated, entry)
	if err != nil {
		return nil, apperrors.NewInternal("failed to encode change event").WithContext("orderID", id)
	}

	if err := s.orders.ApplyChange(ctx, updated, entry, msg); err != nil {
		return nil, s.classifyApply(err, id, entry)
	}

	s.logger.Info("order updated",
		"orderID", id,
		"changeType", changeType,
		"from", previous,
		"to", newValue,
		"changedBy", changedBy.ID)

	return updated, nil
}

func (s *OrderService) checkTransition(changeType models.ChangeType, previous, next string) error {
	if !s.strictTransitions {
		return nil
	}

	switch changeType {
	case models.ChangeTypeStatus:
		if !models.CanTransitionOrderStatus(models.OrderStatus(previous), models.OrderStatus(next)) {
			return apperrors.NewValidation(
				fmt.Sprintf("order status cannot change from %q to %q", previous, next))
		}
	case models.ChangeTypePayment:
		if !models.CanTransitionPaymentStatus(models.PaymentStatus(previous), models.PaymentStatus(next)) {
			return apperrors.NewValidation(
				fmt.Sprintf("payment status cannot change from %q to %q", previous, next))
		}
	}
	// Payment method changes have no ordering constraints, only the
	// always-required reason.
	return nil
}

func (s *OrderService) classifyRead(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFound(fmt.Sprintf("order %s not found", id))
	}
	return apperrors.NewMutation("failed to read order").
		WithContext("orderID", id).
		WithContext("cause", err.Error())
}

func (s *OrderService) classifyApply(err error, id string, entry *models.HistoryEntry) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewNotFound(fmt.Sprintf("order %s not found", id))
	case errors.Is(err, store.ErrConflict):
		return apperrors.NewConflict(
			fmt.Sprintf("order %s was changed by someone else, reload and retry", id))
	case errors.Is(err, store.ErrHistoryAppend):
		// The mutation rolled back with it, but an audit write failing is
		// its own alarm: log with full identifiers, not just a toast.
		s.logger.Error("history append failed, mutation rolled back",
			"orderID", id,
			"entryID", entry.ID,
			"changeType", entry.Type,
			"from", entry.PreviousValue,
			"to", entry.NewValue,
			"error", err)
		return apperrors.NewLedgerAppend(
			fmt.Sprintf("change to order %s could not be recorded in the audit trail", id))
	default:
		return apperrors.NewMutation("failed to apply order change").
			WithContext("orderID", id).
			WithContext("cause", err.Error())
	}
}

func currentValue(order *models.Order, changeType models.ChangeType) string {
	switch changeType {
	case models.ChangeTypePayment:
		return string(order.PaymentStatus)
	case models.ChangeTypePaymentMethod:
		return string(order.PaymentMethod)
	default:
		return string(order.OrderStatus)
	}
}

func applyValue(order *models.Order, changeType models.ChangeType, value string) {
	switch changeType {
	case models.ChangeTypePayment:
		order.PaymentStatus = models.PaymentStatus(value)
	case models.ChangeTypePaymentMethod:
		order.PaymentMethod = models.PaymentMethod(value)
	default:
		order.OrderStatus = models.OrderStatus(value)
	}
}

func reasonRequiredMessage(changeType models.ChangeType, newValue string) string {
	switch changeType {
	case models.ChangeTypePaymentMethod:
		return "a reason is required to change the payment method"
	case models.ChangeTypePayment:
		return fmt.Sprintf("a reason is required to mark a payment %s", newValue)
	default:
		return fmt.Sprintf("a reason is required to mark an order %s", newValue)
	}
}
