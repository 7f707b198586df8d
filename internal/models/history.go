package models

import (
	"fmt"
	"time"
)

// ChangeType identifies which order field a history entry records.
type ChangeType string

const (
	ChangeTypeStatus        ChangeType = "status_change"
	ChangeTypePayment       ChangeType = "payment_change"
	ChangeTypePaymentMethod ChangeType = "payment_method_change"
)

// ValidChangeType reports whether s is a known change type.
func ValidChangeType(s string) bool {
	switch ChangeType(s) {
	case ChangeTypeStatus, ChangeTypePayment, ChangeTypePaymentMethod:
		return true
	}
	return false
}

// Actor is the identity a change is attributed to.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// HistoryEntry is one recorded change to an order. Entries are created once
// when a mutation succeeds and never modified or deleted.
type HistoryEntry struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	Type          ChangeType `json:"type"`
	PreviousValue string     `json:"previous_value"`
	NewValue      string     `json:"new_value"`
	Reason        string     `json:"reason,omitempty"`
	ChangedBy     Actor      `json:"changed_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewHistoryEntry builds an unsaved entry for one change. The store stamps
// CreatedAt at append time.
func NewHistoryEntry(orderID string, t ChangeType, previous, next, reason string, by Actor) *HistoryEntry {
	return &HistoryEntry{
		ID:            GenerateID("hist"),
		OrderID:       orderID,
		Type:          t,
		PreviousValue: previous,
		NewValue:      next,
		Reason:        reason,
		ChangedBy:     by,
	}
}

// Metadata derives the type-keyed from/to view the admin UI renders. It is
// computed here rather than stored so it can never drift from
// PreviousValue/NewValue.
func (e *HistoryEntry) Metadata() map[string]map[string]string {
	var key string
	switch e.Type {
	case ChangeTypeStatus:
		key = "status"
	case ChangeTypePayment:
		key = "payment"
	case ChangeTypePaymentMethod:
		key = "payment_method"
	default:
		return nil
	}

	return map[string]map[string]string{
		key: {"from": e.PreviousValue, "to": e.NewValue},
	}
}

// ReasonRequired is the audit policy: cancelling an order, failing a
// payment, and any payment-method change must carry a human-supplied reason.
func ReasonRequired(t ChangeType, newValue string) bool {
	switch t {
	case ChangeTypeStatus:
		return OrderStatus(newValue) == OrderStatusCancelled
	case ChangeTypePayment:
		return PaymentStatus(newValue) == PaymentStatusFailed
	case ChangeTypePaymentMethod:
		return true
	}
	return false
}

// ValidateValues checks that previous/new are typed according to the entry's
// change type.
func (e *HistoryEntry) ValidateValues() error {
	var ok func(string) bool
	switch e.Type {
	case ChangeTypeStatus:
		ok = ValidOrderStatus
	case ChangeTypePayment:
		ok = ValidPaymentStatus
	case ChangeTypePaymentMethod:
		ok = ValidPaymentMethod
	default:
		return fmt.Errorf("unknown change type %q", e.Type)
	}

	if !ok(e.PreviousValue) {
		return fmt.Errorf("previous value %q is not valid for %s", e.PreviousValue, e.Type)
	}
	if !ok(e.NewValue) {
		return fmt.Errorf("new value %q is not valid for %s", e.NewValue, e.Type)
	}
	return nil
}
