package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boloapp/order-service/internal/actor"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/internal/store/memory"
	apperrors "github.com/boloapp/order-service/pkg/errors"
	"github.com/boloapp/order-service/pkg/logger"
)

var testAdmin = models.Actor{ID: "USER001", Name: "Marie Koné", Role: "admin"}

func newTestService(t *testing.T) (*OrderService, *memory.Store) {
	t.Helper()

	mem := memory.New()
	require.NoError(t, memory.Seed(context.Background(), mem))

	svc := NewOrderService(mem, mem, actor.StaticProvider{Actor: testAdmin}, true, logger.Nop())
	return svc, mem
}

func TestGetOrder(t *testing.T) {
	svc, _ := newTestService(t)

	order, err := svc.GetOrder(context.Background(), "ORD001")
	require.NoError(t, err)
	assert.Equal(t, "Jean Dupont", order.Customer.Name)

	_, err = svc.GetOrder(context.Background(), "ORD999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListOrders_SearchByPhone(t *testing.T) {
	svc, _ := newTestService(t)

	orders, err := svc.ListOrders(context.Background(), models.OrderFilters{Search: "07 07 07 07 07"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD001", orders[0].ID)
}

func TestUpdateOrderStatus_ConfirmWithoutReason(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	order, err := svc.UpdateOrderStatus(ctx, "ORD001", "confirmed", "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.OrderStatus)

	// The ledger grew by exactly one entry attributed to the actor.
	entries, err := mem.ListByOrder(ctx, "ORD001", models.ChangeTypeStatus)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "pending", last.PreviousValue)
	assert.Equal(t, "confirmed", last.NewValue)
	assert.Empty(t, last.Reason)
	assert.Equal(t, testAdmin, last.ChangedBy)
	assert.False(t, last.CreatedAt.IsZero())
}

func TestUpdateOrderStatus_StampsUpdatedAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before, err := svc.GetOrder(ctx, "ORD001")
	require.NoError(t, err)

	after, err := svc.UpdateOrderStatus(ctx, "ORD001", "confirmed", "")
	require.NoError(t, err)

	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestUpdateOrderStatus_CancelRequiresReason(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateOrderStatus(ctx, "ORD001", "cancelled", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// The rejection left no trace.
	order, err := svc.GetOrder(ctx, "ORD001")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)

	entries, err := mem.ListByOrder(ctx, "ORD001", "")
	require.NoError(t, err)
	assert.Len(t, entries, 3, "seed entries only")

	// With a reason it goes through.
	order, err = svc.UpdateOrderStatus(ctx, "ORD001", "cancelled", "Demande du client")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.OrderStatus)

	entries, err = mem.ListByOrder(ctx, "ORD001", "")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "Demande du client", entries[3].Reason)
}

func TestUpdateOrderStatus_UnknownValue(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateOrderStatus(context.Background(), "ORD001", "shipped", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateOrderStatus_UnknownOrder(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateOrderStatus(context.Background(), "ORD999", "confirmed", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateOrderStatus_IllegalTransition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// pending -> delivered skips the lifecycle.
	_, err := svc.UpdateOrderStatus(ctx, "ORD001", "delivered", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Terminal states stay terminal.
	_, err = svc.UpdateOrderStatus(ctx, "ORD004", "processing", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.UpdateOrderStatus(ctx, "ORD005", "confirmed", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateOrderStatus_PermissiveMode(t *testing.T) {
	mem := memory.New()
	require.NoError(t, memory.Seed(context.Background(), mem))
	svc := NewOrderService(mem, mem, actor.StaticProvider{Actor: testAdmin}, false, logger.Nop())

	// Legacy behavior: any known value is accepted.
	order, err := svc.UpdateOrderStatus(context.Background(), "ORD001", "delivered", "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.OrderStatus)
}

func TestUpdateOrderStatus_SameValueIsNoOp(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	before, err := svc.GetOrder(ctx, "ORD001")
	require.NoError(t, err)

	after, err := svc.UpdateOrderStatus(ctx, "ORD001", "pending", "")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	entries, err := mem.ListByOrder(ctx, "ORD001", "")
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no entry for a no-op")
}

func TestUpdatePaymentStatus_Paid(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	order, err := svc.UpdatePaymentStatus(ctx, "ORD001", "paid", "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)

	entries, err := mem.ListByOrder(ctx, "ORD001", models.ChangeTypePayment)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, models.ChangeTypePayment, last.Type)
	assert.Equal(t, "paid", last.NewValue)
}

func TestUpdatePaymentStatus_FailedRequiresReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePaymentStatus(ctx, "ORD001", "failed", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	order, err := svc.UpdatePaymentStatus(ctx, "ORD001", "failed", "Solde insuffisant")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)
}

func TestUpdatePaymentStatus_TerminalStates(t *testing.T) {
	svc, _ := newTestService(t)

	// ORD002 is already paid.
	_, err := svc.UpdatePaymentStatus(context.Background(), "ORD002", "failed", "tentative")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdatePaymentMethod_AlwaysRequiresReason(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	// ORD002 pays cash today.
	_, err := svc.UpdatePaymentMethod(ctx, "ORD002", "card", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	order, err := svc.UpdatePaymentMethod(ctx, "ORD002", "card", "Préférence du client")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, order.PaymentMethod)

	entries, err := mem.ListByOrder(ctx, "ORD002", models.ChangeTypePaymentMethod)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "cash", last.PreviousValue)
	assert.Equal(t, "card", last.NewValue)
	assert.Equal(t, "Préférence du client", last.Reason)
}

func TestUpdatePaymentMethod_SameValueStillRequiresReason(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	// ORD002 already pays cash; the policy applies to the request anyway.
	_, err := svc.UpdatePaymentMethod(ctx, "ORD002", "cash", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// With a reason the same-value request is a no-op: no ledger entry.
	order, err := svc.UpdatePaymentMethod(ctx, "ORD002", "cash", "Confirmation du client")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, order.PaymentMethod)

	entries, err := mem.ListByOrder(ctx, "ORD002", models.ChangeTypePaymentMethod)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "seed entry only")
}

func TestGetOrderHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	entries, err := svc.GetOrderHistory(ctx, "ORD003", "")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Oldest first.
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}

	statusOnly, err := svc.GetOrderHistory(ctx, "ORD003", models.ChangeTypeStatus)
	require.NoError(t, err)
	require.Len(t, statusOnly, 2)

	_, err = svc.GetOrderHistory(ctx, "ORD999", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.GetOrderHistory(ctx, "ORD003", "weird_change")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMutationEmitsOutboxMessage(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateOrderStatus(ctx, "ORD001", "confirmed", "")
	require.NoError(t, err)

	pending, err := mem.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.EventOrderStatusChanged, pending[0].EventType)
	assert.Equal(t, "ORD001", pending[0].AggregateID)
}

func TestContextProviderAttribution(t *testing.T) {
	mem := memory.New()
	require.NoError(t, memory.Seed(context.Background(), mem))

	system := models.Actor{ID: "SYSTEM", Name: "Système", Role: "system"}
	svc := NewOrderService(mem, mem, actor.ContextProvider{Fallback: system}, true, logger.Nop())

	// Without an actor in context the fallback is recorded.
	_, err := svc.UpdateOrderStatus(context.Background(), "ORD001", "confirmed", "")
	require.NoError(t, err)

	entries, err := mem.ListByOrder(context.Background(), "ORD001", models.ChangeTypeStatus)
	require.NoError(t, err)
	assert.Equal(t, system, entries[len(entries)-1].ChangedBy)

	// With one, the request identity wins.
	ctx := actor.WithActor(context.Background(), testAdmin)
	_, err = svc.UpdateOrderStatus(ctx, "ORD001", "processing", "")
	require.NoError(t, err)

	entries, err = mem.ListByOrder(context.Background(), "ORD001", models.ChangeTypeStatus)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, entries[len(entries)-1].ChangedBy)
}

// failingApplyStore wraps the memory store and fails ApplyChange with a
// configured error.
type failingApplyStore struct {
	*memory.Store
	applyErr error
}

func (s *failingApplyStore) ApplyChange(context.Context, *models.Order, *models.HistoryEntry, *models.OutboxMessage) error {
	return s.applyErr
}

func TestLedgerAppendFailureIsDistinct(t *testing.T) {
	mem := memory.New()
	require.NoError(t, memory.Seed(context.Background(), mem))

	failing := &failingApplyStore{Store: mem, applyErr: store.ErrHistoryAppend}
	svc := NewOrderService(failing, mem, actor.StaticProvider{Actor: testAdmin}, true, logger.Nop())

	_, err := svc.UpdateOrderStatus(context.Background(), "ORD001", "confirmed", "")
	assert.ErrorIs(t, err, apperrors.ErrLedgerAppend)

	// The failed change rolled back with its ledger entry: nothing moved.
	order, err := svc.GetOrder(context.Background(), "ORD001")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)

	entries, err := mem.ListByOrder(context.Background(), "ORD001", "")
	require.NoError(t, err)
	assert.Len(t, entries, 3, "seed entries only")
}

func TestConcurrentChangeSurfacesAsConflict(t *testing.T) {
	mem := memory.New()
	require.NoError(t, memory.Seed(context.Background(), mem))

	failing := &failingApplyStore{Store: mem, applyErr: store.ErrConflict}
	svc := NewOrderService(failing, mem, actor.StaticProvider{Actor: testAdmin}, true, logger.Nop())

	_, err := svc.UpdateOrderStatus(context.Background(), "ORD001", "confirmed", "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestErrorClasses(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateOrderStatus(context.Background(), "ORD999", "confirmed", "")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 404, appErr.StatusCode)
	assert.False(t, appErr.Retryable)

	_, err = svc.UpdateOrderStatus(context.Background(), "ORD001", "nonsense", "")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.StatusCode)
}
