package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/postgres"
)

// PGStore keeps the counters in the inventory table. Per-product
// serialization comes from SELECT ... FOR UPDATE: the row lock is held until
// the owning transaction commits, so check-then-increment is atomic per
// product while different products proceed in parallel.
type PGStore struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

const lockRowSQL = `
	SELECT id, product_id, quantity, reserved_quantity, updated_at
	FROM inventory WHERE product_id = $1 FOR UPDATE`

// LockRow reads one product's counters under an exclusive row lock that
// lives until tx ends.
func LockRow(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*Item, error) {
	var it Item
	err := tx.QueryRow(ctx, lockRowSQL, productID).
		Scan(&it.ID, &it.ProductID, &it.Quantity, &it.Reserved, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "inventory not found for product %s", productID)
	}
	if err != nil {
		return nil, postgres.MapError(err)
	}
	return &it, nil
}

func saveCounters(ctx context.Context, tx pgx.Tx, it *Item) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory SET quantity = $2, reserved_quantity = $3, updated_at = now()
		WHERE product_id = $1`,
		it.ProductID, it.Quantity, it.Reserved)
	return postgres.MapError(err)
}

// ReserveTx places a hold on qty units inside the caller's transaction. The
// order placement and payment repositories compose these helpers so a
// multi-row operation stays one atomic unit.
func ReserveTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) (*Item, error) {
	it, err := LockRow(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if it.Available() < qty {
		return nil, apperr.Newf(apperr.InsufficientStock,
			"insufficient stock for product %s: requested %d, available %d", productID, qty, it.Available())
	}
	it.Reserved += qty
	if err := saveCounters(ctx, tx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// ConfirmTx converts a hold into a permanent decrement. Confirming more
// than is reserved is a caller bug and is never clamped.
func ConfirmTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) (*Item, error) {
	it, err := LockRow(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if qty > it.Reserved {
		return nil, apperr.Wrap(apperr.Internal,
			fmt.Sprintf("product %s: reserved %d, confirming %d", productID, it.Reserved, qty),
			ErrReservationUnderflow)
	}
	it.Quantity -= qty
	it.Reserved -= qty
	if err := saveCounters(ctx, tx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// ReleaseTx hands a hold back. Floors at zero so a double release cannot
// drive the counter negative.
func ReleaseTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) (*Item, error) {
	it, err := LockRow(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	it.Reserved -= qty
	if it.Reserved < 0 {
		it.Reserved = 0
	}
	if err := saveCounters(ctx, tx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *PGStore) withTx(ctx context.Context, fn func(tx pgx.Tx) (*Item, error)) (*Item, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer tx.Rollback(ctx)

	if err := postgres.SetLockTimeout(ctx, tx, s.LockTimeout); err != nil {
		return nil, err
	}
	it, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, postgres.MapError(err)
	}
	return it, nil
}

func (s *PGStore) GetByProduct(ctx context.Context, productID uuid.UUID) (*Item, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `
		SELECT id, product_id, quantity, reserved_quantity, updated_at
		FROM inventory WHERE product_id = $1`, productID).
		Scan(&it.ID, &it.ProductID, &it.Quantity, &it.Reserved, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "inventory not found for product %s", productID)
	}
	if err != nil {
		return nil, postgres.MapError(err)
	}
	return &it, nil
}

func (s *PGStore) Reserve(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	return s.withTx(ctx, func(tx pgx.Tx) (*Item, error) {
		return ReserveTx(ctx, tx, productID, qty)
	})
}

func (s *PGStore) Confirm(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	return s.withTx(ctx, func(tx pgx.Tx) (*Item, error) {
		return ConfirmTx(ctx, tx, productID, qty)
	})
}

func (s *PGStore) Release(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	return s.withTx(ctx, func(tx pgx.Tx) (*Item, error) {
		return ReleaseTx(ctx, tx, productID, qty)
	})
}

// AddStock upserts so the row is created lazily on a seller's first restock.
func (s *PGStore) AddStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `
		INSERT INTO inventory (id, product_id, quantity, reserved_quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (product_id) DO UPDATE
			SET quantity = inventory.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id, product_id, quantity, reserved_quantity, updated_at`,
		uuid.New(), productID, qty).
		Scan(&it.ID, &it.ProductID, &it.Quantity, &it.Reserved, &it.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	return &it, nil
}

func (s *PGStore) ReduceStock(ctx context.Context, productID uuid.UUID, qty int) (*Item, error) {
	return s.withTx(ctx, func(tx pgx.Tx) (*Item, error) {
		it, err := LockRow(ctx, tx, productID)
		if err != nil {
			return nil, err
		}
		if it.Quantity < qty {
			return nil, apperr.Newf(apperr.InsufficientStock,
				"insufficient stock for product %s: have %d, reducing %d", productID, it.Quantity, qty)
		}
		if it.Quantity-qty < it.Reserved {
			return nil, apperr.Newf(apperr.InsufficientStock,
				"stock for product %s is held by open reservations", productID)
		}
		it.Quantity -= qty
		if err := saveCounters(ctx, tx, it); err != nil {
			return nil, err
		}
		return it, nil
	})
}
