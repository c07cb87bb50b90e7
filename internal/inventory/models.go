package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Item is one product's stock counters. Reserved never exceeds Quantity and
// never goes negative; both bounds are enforced under the product's
// exclusive lock and backed by CHECK constraints in Postgres.
type Item struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reserved  int       `json:"reserved_quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Available is the stock offerable to new buyers.
func (it Item) Available() int { return it.Quantity - it.Reserved }

// ErrReservationUnderflow marks a confirm for more units than are reserved.
// That is a caller bug, not a user-facing condition.
var ErrReservationUnderflow = errors.New("confirm exceeds reserved quantity")
