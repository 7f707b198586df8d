package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boloapp/order-service/internal/actor"
	"github.com/boloapp/order-service/internal/config"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/service"
	"github.com/boloapp/order-service/internal/store/memory"
	"github.com/boloapp/order-service/pkg/logger"
)

var testAdmin = models.Actor{ID: "USER001", Name: "Marie Koné", Role: "admin"}

func newTestServer(t *testing.T) (*Server, *memory.Store, *actor.TokenVerifier) {
	t.Helper()

	mem := memory.New()
	require.NoError(t, memory.Seed(context.Background(), mem))

	verifier := actor.NewTokenVerifier("test-secret")
	system := models.Actor{ID: "SYSTEM", Name: "Système", Role: "system"}
	svc := service.NewOrderService(mem, mem, actor.ContextProvider{Fallback: system}, true, logger.Nop())

	server := NewServer(&config.Config{Port: 8080}, Dependencies{
		OrderService: svc,
		DeadLetters:  memory.NewDeadLetterQueue(),
		Verifier:     verifier,
	}, logger.Nop())

	return server, mem, verifier
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()
	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestGetOrders(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(raw, &orders))
	assert.Len(t, orders, 5)
	assert.Equal(t, "ORD005", orders[0].ID, "oldest first")
}

func TestGetOrders_Filtered(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by status", "?status=processing", []string{"ORD003"}},
		{"by payment status", "?payment_status=failed", []string{"ORD005"}},
		{"by payment method", "?payment_method=cash", []string{"ORD002"}},
		{"by phone search", "?search=07+07+07+07+07", []string{"ORD001"}},
		{"by date range", "?start_date=2024-03-18&end_date=2024-03-19", []string{"ORD003", "ORD002"}},
		{"no match", "?search=introuvable", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodGet, "/api/v1/orders"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			raw, err := json.Marshal(decodeResponse(t, rec).Data)
			require.NoError(t, err)
			var orders []models.Order
			require.NoError(t, json.Unmarshal(raw, &orders))

			ids := make([]string, 0, len(orders))
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, append([]string(nil), ids...))
		})
	}
}

func TestGetOrders_BadFilter(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/orders?status=shipped", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/orders?start_date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderByID(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	server, mem, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD001/status",
		updateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	order, err := mem.GetByID(context.Background(), "ORD001")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.OrderStatus)
}

func TestUpdateOrderStatusEndpoint_Rejections(t *testing.T) {
	server, _, _ := newTestServer(t)

	// Cancelling without a reason.
	rec := doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD001/status",
		updateStatusRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown status value.
	rec = doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD001/status",
		updateStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Illegal transition.
	rec = doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD001/status",
		updateStatusRequest{Status: "delivered"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown order.
	rec = doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD999/status",
		updateStatusRequest{Status: "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ORD001/status",
		bytes.NewBufferString("{"))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUpdatePaymentStatusEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD001/payment-status",
		updatePaymentStatusRequest{PaymentStatus: "failed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "failed requires a reason")

	rec = doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD001/payment-status",
		updatePaymentStatusRequest{PaymentStatus: "failed", Reason: "Solde insuffisant"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdatePaymentMethodEndpoint(t *testing.T) {
	server, mem, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD002/payment-method",
		updatePaymentMethodRequest{PaymentMethod: "card"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "method change requires a reason")

	rec = doRequest(t, server, http.MethodPatch, "/api/v1/orders/ORD002/payment-method",
		updatePaymentMethodRequest{PaymentMethod: "card", Reason: "Préférence du client"})
	require.Equal(t, http.StatusOK, rec.Code)

	order, err := mem.GetByID(context.Background(), "ORD002")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, order.PaymentMethod)
}

func TestGetOrderHistoryEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD003/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(decodeResponse(t, rec).Data)
	require.NoError(t, err)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 4)

	// Every entry carries derived metadata.
	for _, e := range entries {
		assert.Contains(t, e, "metadata")
	}

	rec = doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD003/history?type=status_change", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	raw, err = json.Marshal(decodeResponse(t, rec).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Len(t, entries, 2)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD999/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD003/history?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutationAttributedToTokenActor(t *testing.T) {
	server, mem, verifier := newTestServer(t)

	token, err := verifier.IssueToken(testAdmin, time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(updateStatusRequest{Status: "confirmed"}))
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ORD001/status", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := mem.ListByOrder(context.Background(), "ORD001", models.ChangeTypeStatus)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, entries[len(entries)-1].ChangedBy)
}

func TestConflictSurfacesAs409(t *testing.T) {
	server, mem, _ := newTestServer(t)
	ctx := context.Background()

	// Simulate a lost update: the handler reads, then someone else commits.
	order, err := mem.GetByID(ctx, "ORD001")
	require.NoError(t, err)

	winner := order.Clone()
	winner.OrderStatus = models.OrderStatusConfirmed
	entry := models.NewHistoryEntry("ORD001", models.ChangeTypeStatus, "pending", "confirmed", "", testAdmin)
	msg, err := models.NewChangeEvent(winner, entry)
	require.NoError(t, err)
	require.NoError(t, mem.ApplyChange(ctx, winner, entry, msg))

	// The service re-reads, so a normal request now sees "confirmed" and a
	// pending->cancelled request fails as an illegal transition; the 409
	// path itself is covered by the store tests. Here we check the API
	// stays coherent after the race.
	rec := doRequest(t, server, http.MethodGet, "/api/v1/orders/ORD001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDeadLetters(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/admin/dead-letters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/admin/dead-letters/42/retry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/admin/dead-letters/abc/discard", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
