package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/boloapp/order-service/internal/models"
	apperrors "github.com/boloapp/order-service/pkg/errors"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
	Reason        string `json:"reason,omitempty"`
}

type updatePaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
	Reason        string `json:"reason,omitempty"`
}

// historyEntryView decorates a ledger entry with its derived metadata for
// the admin UI.
type historyEntryView struct {
	*models.HistoryEntry
	Metadata map[string]map[string]string `json:"metadata"`
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   "1.0.0",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// getOrdersHandler lists orders, narrowed by the query string filters.
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := s.orders.ListOrders(r.Context(), filters)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// getOrderHistoryHandler returns the order's change log oldest-first. The
// optional type query parameter narrows to one change type.
func (s *Server) getOrderHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	typeFilter := models.ChangeType(r.URL.Query().Get("type"))

	entries, err := s.orders.GetOrderHistory(r.Context(), id, typeFilter)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	views := make([]historyEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, historyEntryView{HistoryEntry: e, Metadata: e.Metadata()})
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    views,
	})
}

func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orders.UpdateOrderStatus(r.Context(), id, req.Status, req.Reason)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

func (s *Server) updatePaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orders.UpdatePaymentStatus(r.Context(), id, req.PaymentStatus, req.Reason)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

func (s *Server) updatePaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updatePaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orders.UpdatePaymentMethod(r.Context(), id, req.PaymentMethod, req.Reason)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

func parseFilters(r *http.Request) (models.OrderFilters, error) {
	q := r.URL.Query()

	filters := models.OrderFilters{
		Status:        models.OrderStatus(q.Get("status")),
		PaymentStatus: models.PaymentStatus(q.Get("payment_status")),
		PaymentMethod: models.PaymentMethod(q.Get("payment_method")),
		Search:        q.Get("search"),
	}

	if filters.Status != "" && !models.ValidOrderStatus(string(filters.Status)) {
		return filters, errors.New("unknown status filter")
	}
	if filters.PaymentStatus != "" && !models.ValidPaymentStatus(string(filters.PaymentStatus)) {
		return filters, errors.New("unknown payment_status filter")
	}
	if filters.PaymentMethod != "" && !models.ValidPaymentMethod(string(filters.PaymentMethod)) {
		return filters, errors.New("unknown payment_method filter")
	}

	if v := q.Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filters, errors.New("invalid start_date, expected RFC 3339 or YYYY-MM-DD")
		}
		filters.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filters, errors.New("invalid end_date, expected RFC 3339 or YYYY-MM-DD")
		}
		// A bare date means the whole day.
		if len(v) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filters.EndDate = &t
	}

	return filters, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// respondWithAppError maps a service error to its HTTP status.
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		s.respondWithError(w, appErr.StatusCode, appErr.Message)
		return
	}
	s.respondWithError(w, http.StatusInternalServerError, "internal server error")
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
