package memory

import (
	"context"
	"sort"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
)

// Outbox and dead-letter implementations for the memory backend.

func (s *Store) GetPendingMessages(_ context.Context, limit int) ([]*models.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.OutboxMessage
	for _, m := range s.outbox {
		if m.Status == models.OutboxStatusPending {
			out = append(out, cloneOutbox(m))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetMessage(_ context.Context, id int64) (*models.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m := s.findOutbox(id); m != nil {
		return cloneOutbox(m), nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) MarkProcessing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findOutbox(id)
	if m == nil {
		return store.ErrNotFound
	}
	m.Status = models.OutboxStatusProcessing
	m.ProcessingAttempts++
	return nil
}

func (s *Store) MarkCompleted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findOutbox(id)
	if m == nil {
		return store.ErrNotFound
	}
	now := models.Now()
	m.Status = models.OutboxStatusCompleted
	m.ProcessedAt = &now
	return nil
}

func (s *Store) MarkRetry(_ context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findOutbox(id)
	if m == nil {
		return store.ErrNotFound
	}
	m.Status = models.OutboxStatusPending
	m.LastError = &errorMessage
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findOutbox(id)
	if m == nil {
		return store.ErrNotFound
	}
	m.Status = models.OutboxStatusFailed
	m.LastError = &errorMessage
	return nil
}

// findOutbox must be called with the store lock held.
func (s *Store) findOutbox(id int64) *models.OutboxMessage {
	for _, m := range s.outbox {
		if m.ID == id {
			return m
		}
	}
	return nil
}
