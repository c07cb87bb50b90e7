// Package inventory owns per-product stock counters: reservations, their
// confirmation or release, and direct seller adjustments.
package inventory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
)

// Ledger validates inputs and logs; the Store underneath provides the
// per-product critical section.
type Ledger struct {
	Store Store
	Log   *zap.Logger
}

func (l *Ledger) GetByProduct(ctx context.Context, productID uuid.UUID) (*Item, error) {
	return l.Store.GetByProduct(ctx, productID)
}

func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "reserve quantity must be positive")
	}
	it, err := l.Store.Reserve(ctx, productID, qty)
	if err != nil {
		if apperr.IsKind(err, apperr.InsufficientStock) {
			l.Log.Info("reservation rejected",
				zap.String("product_id", productID.String()), zap.Int("qty", qty))
		}
		return nil, err
	}
	l.Log.Info("stock reserved",
		zap.String("product_id", productID.String()), zap.Int("qty", qty),
		zap.Int("reserved", it.Reserved), zap.Int("available", it.Available()))
	return it, nil
}

func (l *Ledger) ConfirmReservation(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "confirm quantity must be positive")
	}
	it, err := l.Store.Confirm(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	l.Log.Info("reservation confirmed",
		zap.String("product_id", productID.String()), zap.Int("qty", qty),
		zap.Int("quantity", it.Quantity), zap.Int("reserved", it.Reserved))
	return it, nil
}

func (l *Ledger) ReleaseReservation(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "release quantity must be positive")
	}
	it, err := l.Store.Release(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	l.Log.Info("reservation released",
		zap.String("product_id", productID.String()), zap.Int("qty", qty),
		zap.Int("reserved", it.Reserved))
	return it, nil
}

func (l *Ledger) AddStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "add quantity must be positive")
	}
	it, err := l.Store.AddStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	l.Log.Info("stock added",
		zap.String("product_id", productID.String()), zap.Int("qty", qty),
		zap.Int("quantity", it.Quantity))
	return it, nil
}

func (l *Ledger) ReduceStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "reduce quantity must be positive")
	}
	it, err := l.Store.ReduceStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	l.Log.Info("stock reduced",
		zap.String("product_id", productID.String()), zap.Int("qty", qty),
		zap.Int("quantity", it.Quantity))
	return it, nil
}
