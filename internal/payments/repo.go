package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/inventory"
	"github.com/openshop/openshop/internal/orders"
	"github.com/openshop/openshop/internal/postgres"
)

// Repo couples each payment transition with its order-status change (and,
// where the policy says so, the inventory movement) in one transaction.
type Repo struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

const paymentCols = `id, order_id, user_id, amount_cents, status, transaction_id, idempotency_key, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.AmountCents, &p.Status,
		&p.TransactionID, &p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "payment not found")
	}
	if err != nil {
		return nil, postgres.MapError(err)
	}
	return &p, nil
}

func (r *Repo) GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error) {
	return scanPayment(r.DB.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE idempotency_key = $1`, key))
}

// GetByOrder returns the latest attempt for the order.
func (r *Repo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	return scanPayment(r.DB.QueryRow(ctx, `
		SELECT `+paymentCols+` FROM payments
		WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

func (r *Repo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return postgres.MapError(err)
	}
	defer tx.Rollback(ctx)

	if err := postgres.SetLockTimeout(ctx, tx, r.LockTimeout); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return postgres.MapError(tx.Commit(ctx))
}

func setOrderStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, from, to orders.Status) error {
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, orderID, from, to)
	if err != nil {
		return postgres.MapError(err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.Newf(apperr.Conflict, "order %s is no longer %s", orderID, from)
	}
	return nil
}

func orderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]orders.Item, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, qty, price_cents FROM order_items
		WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var items []orders.Item
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, postgres.MapError(err)
		}
		items = append(items, it)
	}
	return items, postgres.MapError(rows.Err())
}

// Initiate inserts the payment and advances the order in one step. The
// unique idempotency_key constraint backstops concurrent initiations.
func (r *Repo) Initiate(ctx context.Context, p *Payment, orderFrom orders.Status) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO payments (id, order_id, user_id, amount_cents, status, transaction_id, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			p.ID, p.OrderID, p.UserID, p.AmountCents, p.Status, p.TransactionID, p.IdempotencyKey).
			Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return postgres.MapError(err)
		}
		return setOrderStatus(ctx, tx, p.OrderID, orderFrom, orders.StatusPaymentInitiated)
	})
}

func (r *Repo) setPaymentStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, from, to Status) (*Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx, `
		UPDATE payments SET status = $3, updated_at = now()
		WHERE id = (SELECT id FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1)
		  AND status = $2
		RETURNING `+paymentCols, orderID, from, to))
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, apperr.Newf(apperr.Conflict, "payment for order %s is not %s", orderID, from)
	}
	return p, err
}

// Confirm marks the payment SUCCESS, the order CONFIRMED, and converts
// every reservation into a permanent stock decrement. The sale is final
// only when all three hold.
func (r *Repo) Confirm(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	var p *Payment
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = r.setPaymentStatus(ctx, tx, orderID, StatusInitiated, StatusSuccess)
		if err != nil {
			return err
		}
		if err := setOrderStatus(ctx, tx, orderID, orders.StatusPaymentInitiated, orders.StatusConfirmed); err != nil {
			return err
		}
		items, err := orderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := inventory.ConfirmTx(ctx, tx, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Fail marks the payment and the order FAILED and releases every
// reservation: a failed order must not keep stock on hold.
func (r *Repo) Fail(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	var p *Payment
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = r.setPaymentStatus(ctx, tx, orderID, StatusInitiated, StatusFailed)
		if err != nil {
			return err
		}
		if err := setOrderStatus(ctx, tx, orderID, orders.StatusPaymentInitiated, orders.StatusFailed); err != nil {
			return err
		}
		items, err := orderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := inventory.ReleaseTx(ctx, tx, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Refund flips the payment to REFUNDED. Inventory is untouched here; the
// order-cancellation path owns releasing stock.
func (r *Repo) Refund(ctx context.Context, orderID uuid.UUID, from Status) (*Payment, error) {
	var p *Payment
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = r.setPaymentStatus(ctx, tx, orderID, from, StatusRefunded)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
