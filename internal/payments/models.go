package payments

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// REFUNDED covers both a true refund after success and a cancellation of a
// failed attempt; there is no way back out of it.
var validNext = map[Status]map[Status]bool{
	StatusInitiated: {StatusSuccess: true, StatusFailed: true},
	StatusSuccess:   {StatusRefunded: true},
	StatusFailed:    {StatusRefunded: true},
	StatusRefunded:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type Payment struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	UserID         string    `json:"user_id"`
	AmountCents    int       `json:"amount_cents"`
	Status         Status    `json:"status"`
	TransactionID  string    `json:"transaction_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
