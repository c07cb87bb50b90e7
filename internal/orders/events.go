package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventOrderCancelled    = "OrderCancelled"
	EventPaymentAuthorized = "PaymentAuthorized"
	EventPaymentFailed     = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     string    `json:"user_id"`
	Items      []Item    `json:"items"`
	TotalCents int       `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  string    `json:"user_id"`
}

// Payloads the payment gateway publishes back at us.

type PaymentAuthorizedPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	PaymentRef  string    `json:"payment_ref"`
	AmountCents int       `json:"amount_cents"`
}

type PaymentFailedPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"` // e.g. INSUFFICIENT_FUNDS
}
