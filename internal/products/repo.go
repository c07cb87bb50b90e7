// Package products holds the catalog rows the cart prices against.
package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/postgres"
)

type Product struct {
	ID         uuid.UUID `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, sku, name, price_cents, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "product not found")
	}
	if err != nil {
		return nil, postgres.MapError(err)
	}
	return &p, nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1`, id))
}

func (r *Repo) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE sku = $1`, sku))
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, postgres.MapError(err)
		}
		out = append(out, p)
	}
	return out, postgres.MapError(rows.Err())
}

func (r *Repo) Create(ctx context.Context, p *Product) (*Product, error) {
	if p.SKU == "" || p.Name == "" {
		return nil, apperr.New(apperr.InvalidArgument, "sku and name are required")
	}
	if p.PriceCents < 0 {
		return nil, apperr.New(apperr.InvalidArgument, "price must not be negative")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products (id, sku, name, price_cents, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productCols,
		p.ID, p.SKU, p.Name, p.PriceCents, p.Active))
}
