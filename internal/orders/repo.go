package orders

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/inventory"
	"github.com/openshop/openshop/internal/postgres"
)

type Repo struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

// sortByProduct fixes the lock acquisition order. Two orders reserving the
// same two products in opposite input order would otherwise deadlock on
// each other's row locks.
func sortByProduct(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out
}

// Place persists the order, its items and every reservation in one
// transaction. Any failure rolls back the lot: no partial order is ever
// observable.
func (r *Repo) Place(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return postgres.MapError(err)
	}
	defer tx.Rollback(ctx)

	if err := postgres.SetLockTimeout(ctx, tx, r.LockTimeout); err != nil {
		return err
	}

	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, total_cents, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.Status, o.TotalCents, key).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return postgres.MapError(err)
		}
	}

	for _, it := range sortByProduct(o.Items) {
		if _, err := inventory.ReserveTx(ctx, tx, it.ProductID, it.Qty); err != nil {
			return err
		}
	}

	return postgres.MapError(tx.Commit(ctx))
}

const orderCols = `id, user_id, status, total_cents, COALESCE(idempotency_key, ''), created_at, updated_at`

func (r *Repo) scanOrder(ctx context.Context, row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "order not found")
	}
	if err != nil {
		return nil, postgres.MapError(err)
	}
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, qty, price_cents FROM order_items
		WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, postgres.MapError(err)
		}
		items = append(items, it)
	}
	return items, postgres.MapError(rows.Err())
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.scanOrder(ctx, r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (r *Repo) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	return r.scanOrder(ctx, r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE idempotency_key = $1`, key))
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, postgres.MapError(err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err)
	}
	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// UpdateStatus guards on the expected current status so a concurrent
// transition loses cleanly instead of overwriting.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	if ct.RowsAffected() == 0 {
		return nil, apperr.Newf(apperr.Conflict, "order %s is no longer %s", id, from)
	}
	return r.GetByID(ctx, id)
}

// CloseAndRelease flips the order to a terminal status and hands every
// reservation back, in one transaction. A terminal order with live
// reservations must never be observable.
func (r *Repo) CloseAndRelease(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer tx.Rollback(ctx)

	if err := postgres.SetLockTimeout(ctx, tx, r.LockTimeout); err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, it := range sortByProduct(items) {
		if _, err := inventory.ReleaseTx(ctx, tx, it.ProductID, it.Qty); err != nil {
			return nil, err
		}
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	if ct.RowsAffected() == 0 {
		return nil, apperr.Newf(apperr.Conflict, "order %s is no longer %s", id, from)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, postgres.MapError(err)
	}
	return r.GetByID(ctx, id)
}
