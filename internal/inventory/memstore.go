package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openshop/openshop/internal/apperr"
)

// MemStore satisfies the per-product serialization contract with a mutex
// per row instead of a database lock. Used by tests and local runs without
// Postgres.
type MemStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*memRow
}

type memRow struct {
	mu sync.Mutex
	it Item
}

func NewMemStore() *MemStore {
	return &MemStore{rows: map[uuid.UUID]*memRow{}}
}

func (s *MemStore) row(productID uuid.UUID) (*memRow, error) {
	s.mu.RLock()
	r, ok := s.rows[productID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "inventory not found for product %s", productID)
	}
	return r, nil
}

func (s *MemStore) GetByProduct(ctx context.Context, productID uuid.UUID) (*Item, error) {
	r, err := s.row(productID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.it
	return &it, nil
}

func (s *MemStore) Reserve(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	r, err := s.row(productID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.it.Available() < qty {
		return nil, apperr.Newf(apperr.InsufficientStock,
			"insufficient stock for product %s: requested %d, available %d", productID, qty, r.it.Available())
	}
	r.it.Reserved += qty
	r.it.UpdatedAt = time.Now().UTC()
	it := r.it
	return &it, nil
}

func (s *MemStore) Confirm(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	r, err := s.row(productID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if qty > r.it.Reserved {
		return nil, apperr.Wrap(apperr.Internal,
			fmt.Sprintf("product %s: reserved %d, confirming %d", productID, r.it.Reserved, qty),
			ErrReservationUnderflow)
	}
	r.it.Quantity -= qty
	r.it.Reserved -= qty
	r.it.UpdatedAt = time.Now().UTC()
	it := r.it
	return &it, nil
}

func (s *MemStore) Release(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	r, err := s.row(productID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.it.Reserved -= qty
	if r.it.Reserved < 0 {
		r.it.Reserved = 0
	}
	r.it.UpdatedAt = time.Now().UTC()
	it := r.it
	return &it, nil
}

func (s *MemStore) AddStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	s.mu.Lock()
	r, ok := s.rows[productID]
	if !ok {
		r = &memRow{it: Item{ID: uuid.New(), ProductID: productID}}
		s.rows[productID] = r
	}
	s.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.it.Quantity += qty
	r.it.UpdatedAt = time.Now().UTC()
	it := r.it
	return &it, nil
}

func (s *MemStore) ReduceStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	r, err := s.row(productID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.it.Quantity < qty {
		return nil, apperr.Newf(apperr.InsufficientStock,
			"insufficient stock for product %s: have %d, reducing %d", productID, r.it.Quantity, qty)
	}
	if r.it.Quantity-qty < r.it.Reserved {
		return nil, apperr.Newf(apperr.InsufficientStock,
			"stock for product %s is held by open reservations", productID)
	}
	r.it.Quantity -= qty
	r.it.UpdatedAt = time.Now().UTC()
	it := r.it
	return &it, nil
}
