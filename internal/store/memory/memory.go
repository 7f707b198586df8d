// Package memory is the in-memory store backend. It backs tests and local
// development; production deployments use the Postgres repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
)

// Store implements every store interface over process memory. Mutations to
// the same order serialize on a per-order lock; different orders proceed
// independently.
type Store struct {
	mu         sync.RWMutex
	orders     map[string]*models.Order
	history    []*models.HistoryEntry
	outbox     []*models.OutboxMessage
	nextOutbox int64

	locksMu    sync.Mutex
	orderLocks map[string]*sync.Mutex
}

// New returns an empty store.
func New() *Store {
	return &Store{
		orders:     make(map[string]*models.Order),
		orderLocks: make(map[string]*sync.Mutex),
		nextOutbox: 1,
	}
}

func (s *Store) lockOrder(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.orderLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.orderLocks[id] = l
	}
	return l
}

// List returns matching orders ordered by created_at then id ascending.
func (s *Store) List(_ context.Context, filters models.OrderFilters) ([]*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Order
	for _, o := range s.orders {
		if matches(o, filters) {
			out = append(out, o.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func matches(o *models.Order, f models.OrderFilters) bool {
	if f.Status != "" && o.OrderStatus != f.Status {
		return false
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.StartDate != nil && o.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && o.CreatedAt.After(*f.EndDate) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(o.Customer.Name), needle) &&
			!strings.Contains(strings.ToLower(o.Customer.Phone), needle) &&
			!strings.Contains(strings.ToLower(o.ID), needle) {
			return false
		}
	}
	return true
}

// GetByID returns a copy of the order or store.ErrNotFound.
func (s *Store) GetByID(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o.Clone(), nil
}

// Create inserts a validated order.
func (s *Store) Create(_ context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s already exists", store.ErrStorage, order.ID)
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

// ApplyChange applies one mutation plus its history entry and outbox message
// under the order's lock, checking the expected previous value first.
func (s *Store) ApplyChange(_ context.Context, order *models.Order, entry *models.HistoryEntry, msg *models.OutboxMessage) error {
	lock := s.lockOrder(order.ID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.ID]
	if !ok {
		return store.ErrNotFound
	}

	var stored string
	switch entry.Type {
	case models.ChangeTypeStatus:
		stored = string(current.OrderStatus)
	case models.ChangeTypePayment:
		stored = string(current.PaymentStatus)
	case models.ChangeTypePaymentMethod:
		stored = string(current.PaymentMethod)
	default:
		return fmt.Errorf("%w: unknown change type %q", store.ErrStorage, entry.Type)
	}

	if stored != entry.PreviousValue {
		return store.ErrConflict
	}

	entry.CreatedAt = models.Now()
	if msg != nil {
		msg.ID = s.nextOutbox
		s.nextOutbox++
	}

	s.orders[order.ID] = order.Clone()
	s.history = append(s.history, cloneEntry(entry))
	if msg != nil {
		s.outbox = append(s.outbox, cloneOutbox(msg))
	}

	return nil
}

// Append stamps CreatedAt when unset and stores the entry.
func (s *Store) Append(_ context.Context, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = models.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, cloneEntry(entry))
	return nil
}

// ListByOrder returns the order's entries oldest-first.
func (s *Store) ListByOrder(_ context.Context, orderID string, typeFilter models.ChangeType) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.HistoryEntry
	for _, e := range s.history {
		if e.OrderID != orderID {
			continue
		}
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		out = append(out, cloneEntry(e))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func cloneEntry(e *models.HistoryEntry) *models.HistoryEntry {
	cp := *e
	return &cp
}

func cloneOutbox(m *models.OutboxMessage) *models.OutboxMessage {
	cp := *m
	cp.Payload = append([]byte(nil), m.Payload...)
	return &cp
}
