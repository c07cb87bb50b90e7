package orders

type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPaymentInitiated Status = "PAYMENT_INITIATED"
	StatusConfirmed        Status = "CONFIRMED"
	StatusShipped          Status = "SHIPPED"
	StatusDelivered        Status = "DELIVERED"
	StatusCancelled        Status = "CANCELLED"
	StatusFailed           Status = "FAILED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:          {StatusPaymentInitiated: true, StatusCancelled: true, StatusFailed: true},
	StatusPaymentInitiated: {StatusConfirmed: true, StatusCancelled: true, StatusFailed: true},
	StatusConfirmed:        {StatusShipped: true},
	StatusShipped:          {StatusDelivered: true},
	StatusDelivered:        {},
	StatusCancelled:        {},
	StatusFailed:           {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
