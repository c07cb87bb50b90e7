package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Store is the durable side of the ledger. Implementations must run each
// mutation inside an exclusive critical section keyed by product id: two
// concurrent reserves on the same product must never both read the same
// available snapshot. PGStore uses a row lock, MemStore a per-product mutex.
type Store interface {
	// GetByProduct is a lock-free read; fine for display, never for
	// reservation decisions.
	GetByProduct(ctx context.Context, productID uuid.UUID) (*Item, error)

	Reserve(ctx context.Context, productID uuid.UUID, qty int) (*Item, error)
	Confirm(ctx context.Context, productID uuid.UUID, qty int) (*Item, error)
	Release(ctx context.Context, productID uuid.UUID, qty int) (*Item, error)

	// AddStock creates the inventory row lazily on first use.
	AddStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error)
	ReduceStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error)
}
