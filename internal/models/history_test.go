package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistoryEntry(t *testing.T) {
	by := Actor{ID: "USER001", Name: "Marie Koné", Role: "admin"}

	e := NewHistoryEntry("ORD001", ChangeTypeStatus, "pending", "confirmed", "stock vérifié", by)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "ORD001", e.OrderID)
	assert.Equal(t, ChangeTypeStatus, e.Type)
	assert.Equal(t, "pending", e.PreviousValue)
	assert.Equal(t, "confirmed", e.NewValue)
	assert.Equal(t, "stock vérifié", e.Reason)
	assert.Equal(t, by, e.ChangedBy)
	assert.True(t, e.CreatedAt.IsZero(), "CreatedAt is stamped by the store")
}

func TestHistoryEntryMetadata(t *testing.T) {
	tests := []struct {
		changeType ChangeType
		key        string
	}{
		{ChangeTypeStatus, "status"},
		{ChangeTypePayment, "payment"},
		{ChangeTypePaymentMethod, "payment_method"},
	}

	for _, tt := range tests {
		t.Run(string(tt.changeType), func(t *testing.T) {
			e := &HistoryEntry{Type: tt.changeType, PreviousValue: "a", NewValue: "b"}

			meta := e.Metadata()
			require.Contains(t, meta, tt.key)
			assert.Equal(t, "a", meta[tt.key]["from"])
			assert.Equal(t, "b", meta[tt.key]["to"])
			assert.Len(t, meta, 1)
		})
	}
}

func TestHistoryEntryMetadata_TracksValues(t *testing.T) {
	// Metadata is derived, so updating the entry's values moves it too.
	e := &HistoryEntry{Type: ChangeTypeStatus, PreviousValue: "pending", NewValue: "confirmed"}
	assert.Equal(t, "confirmed", e.Metadata()["status"]["to"])

	e.NewValue = "cancelled"
	assert.Equal(t, "cancelled", e.Metadata()["status"]["to"])
}

func TestReasonRequired(t *testing.T) {
	// Cancelling and failing require a reason.
	assert.True(t, ReasonRequired(ChangeTypeStatus, "cancelled"))
	assert.True(t, ReasonRequired(ChangeTypePayment, "failed"))

	// Any payment method change requires one.
	assert.True(t, ReasonRequired(ChangeTypePaymentMethod, "cash"))
	assert.True(t, ReasonRequired(ChangeTypePaymentMethod, "card"))

	// Ordinary progress does not.
	assert.False(t, ReasonRequired(ChangeTypeStatus, "confirmed"))
	assert.False(t, ReasonRequired(ChangeTypeStatus, "processing"))
	assert.False(t, ReasonRequired(ChangeTypeStatus, "delivered"))
	assert.False(t, ReasonRequired(ChangeTypePayment, "paid"))
}

func TestHistoryEntryValidateValues(t *testing.T) {
	e := &HistoryEntry{Type: ChangeTypeStatus, PreviousValue: "pending", NewValue: "confirmed"}
	assert.NoError(t, e.ValidateValues())

	e.NewValue = "nonsense"
	assert.Error(t, e.ValidateValues())

	e = &HistoryEntry{Type: "mystery_change", PreviousValue: "a", NewValue: "b"}
	assert.Error(t, e.ValidateValues())
}

func TestValidChangeType(t *testing.T) {
	assert.True(t, ValidChangeType("status_change"))
	assert.True(t, ValidChangeType("payment_change"))
	assert.True(t, ValidChangeType("payment_method_change"))
	assert.False(t, ValidChangeType("other"))
	assert.False(t, ValidChangeType(""))
}
