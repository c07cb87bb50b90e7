package orders

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	Items          []Item    `json:"items"`
	TotalCents     int       `json:"total_cents"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Item is immutable once the order exists; the price is the unit price the
// cart captured at add time, never recomputed from the live catalog.
type Item struct {
	ProductID  uuid.UUID `json:"product_id"`
	Qty        int       `json:"qty"`
	PriceCents int       `json:"price_cents"`
}

// Total sums price*qty once, at creation.
func Total(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.PriceCents * it.Qty
	}
	return total
}
