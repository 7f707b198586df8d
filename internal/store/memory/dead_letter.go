package memory

import (
	"context"
	"sync"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
)

// DeadLetterQueue is the in-memory dead-letter store.
type DeadLetterQueue struct {
	mu     sync.RWMutex
	msgs   []*models.DeadLetterMessage
	nextID int64
}

// NewDeadLetterQueue returns an empty queue.
func NewDeadLetterQueue() *DeadLetterQueue {
	return &DeadLetterQueue{nextID: 1}
}

func (q *DeadLetterQueue) Create(_ context.Context, msg *models.DeadLetterMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	msg.ID = q.nextID
	q.nextID++
	cp := *msg
	q.msgs = append(q.msgs, &cp)
	return nil
}

func (q *DeadLetterQueue) List(_ context.Context, status string, limit, offset int) ([]*models.DeadLetterMessage, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*models.DeadLetterMessage
	for _, m := range q.msgs {
		if status != "" && m.Status != status {
			continue
		}
		out = append(out, cloneDeadLetter(m))
	}

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *DeadLetterQueue) GetByID(_ context.Context, id int64) (*models.DeadLetterMessage, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if m := q.find(id); m != nil {
		return cloneDeadLetter(m), nil
	}
	return nil, store.ErrNotFound
}

func (q *DeadLetterQueue) GetRetryable(_ context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*models.DeadLetterMessage
	for _, m := range q.msgs {
		if m.Status == string(models.DeadLetterStatusPending) ||
			m.Status == string(models.DeadLetterStatusRetrying) {
			out = append(out, cloneDeadLetter(m))
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *DeadLetterQueue) MarkRetrying(_ context.Context, id int64) error {
	return q.setStatus(id, models.DeadLetterStatusRetrying, false)
}

func (q *DeadLetterQueue) MarkResolved(_ context.Context, id int64) error {
	return q.setStatus(id, models.DeadLetterStatusResolved, true)
}

func (q *DeadLetterQueue) MarkDiscarded(_ context.Context, id int64) error {
	return q.setStatus(id, models.DeadLetterStatusDiscarded, true)
}

func (q *DeadLetterQueue) setStatus(id int64, status models.DeadLetterStatus, resolved bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := q.find(id)
	if m == nil {
		return store.ErrNotFound
	}

	now := models.Now()
	m.Status = string(status)
	if status == models.DeadLetterStatusRetrying {
		m.RetryCount++
		m.LastRetryAt = &now
	}
	if resolved {
		m.ResolvedAt = &now
	}
	return nil
}

// find must be called with the lock held.
func (q *DeadLetterQueue) find(id int64) *models.DeadLetterMessage {
	for _, m := range q.msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func cloneDeadLetter(m *models.DeadLetterMessage) *models.DeadLetterMessage {
	cp := *m
	cp.Payload = append([]byte(nil), m.Payload...)
	return &cp
}
