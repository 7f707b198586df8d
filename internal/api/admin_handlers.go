package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/boloapp/order-service/internal/store"
)

// PaginationResponse wraps a paged admin listing.
type PaginationResponse struct {
	Items      interface{} `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Status     string      `json:"status,omitempty"`
}

// getDeadLettersHandler lists dead-lettered messages for operator review.
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	status := r.URL.Query().Get("status")
	offset := (page - 1) * pageSize

	messages, err := s.deadLetters.List(ctx, status, pageSize, offset)
	if err != nil {
		s.logger.Error("failed to fetch dead letter messages", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "failed to fetch dead letter messages")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginationResponse{
			Items:      messages,
			TotalCount: len(messages),
			Page:       page,
			PageSize:   pageSize,
			Status:     status,
		},
	})
}

// retryDeadLetterHandler queues one dead-lettered message for another
// publication attempt.
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if _, err := s.deadLetters.GetByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "dead letter message not found")
			return
		}
		s.logger.Error("failed to fetch dead letter message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "failed to fetch dead letter message")
		return
	}

	// Retrying messages are picked up by the dead letter processor's next
	// sweep.
	if err := s.deadLetters.MarkRetrying(ctx, id); err != nil {
		s.logger.Error("failed to queue dead letter retry", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "failed to queue retry")
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, ApiResponse{
		Success: true,
		Data:    map[string]interface{}{"id": id, "status": "retrying"},
	})
}

// discardDeadLetterHandler permanently discards a dead-lettered message.
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if _, err := s.deadLetters.GetByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "dead letter message not found")
			return
		}
		s.logger.Error("failed to fetch dead letter message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "failed to fetch dead letter message")
		return
	}

	if err := s.deadLetters.MarkDiscarded(ctx, id); err != nil {
		s.logger.Error("failed to discard dead letter message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "failed to discard message")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]interface{}{"id": id, "status": "discarded"},
	})
}

// getNotifierBreakerHandler reports the notification gateway breaker state.
func (s *Server) getNotifierBreakerHandler(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		s.respondWithError(w, http.StatusNotFound, "notifier is not configured")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    s.notifier.Breaker().Metrics(),
	})
}

// getRateLimitMetricsHandler reports rate limiter counters.
func (s *Server) getRateLimitMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if s.rateLimiter == nil {
		s.respondWithError(w, http.StatusNotFound, "rate limiting is not configured")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    s.rateLimiter.Metrics(),
	})
}
